package main

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcStatistics(t *testing.T) {
	m := makeMBTiles(t, SchemeTMS)
	require.NoError(t, m.PutTile(Tile{T: maptile.New(0, 0, 1), C: make([]byte, 100)}))
	require.NoError(t, m.PutTile(Tile{T: maptile.New(1, 0, 1), C: make([]byte, 300)}))
	require.NoError(t, m.PutTile(Tile{T: maptile.New(3, 1, 2), C: make([]byte, 450000)}))

	stats, err := calcStatistics(m)
	require.NoError(t, err)
	require.Len(t, stats.Zooms, 2)

	z1 := stats.Zooms[0]
	assert.Equal(t, 1, z1.Zoom)
	assert.Equal(t, int64(100), z1.MinSize)
	assert.Equal(t, int64(300), z1.MaxSize)
	assert.Equal(t, 200.0, z1.AvgSize)
	assert.Equal(t, int64(2), z1.Count)

	z2 := stats.Zooms[1]
	assert.Equal(t, 2, z2.Zoom)
	assert.Equal(t, int64(1), z2.Count)

	require.Len(t, stats.LargeTiles[400000], 1)
	large := stats.LargeTiles[400000][0]
	assert.Equal(t, 2, large.Z)
	assert.Equal(t, int64(3), large.X)
	assert.Equal(t, int64(1), large.Y)
	assert.Equal(t, int64(450000), large.Size)
	assert.Empty(t, stats.LargeTiles[500000])
}

func TestStatisticsPrint(t *testing.T) {
	stats := &Statistics{
		Name:  "test.mbtiles",
		Zooms: []ZoomStats{{Zoom: 1, MinSize: 10, MaxSize: 20, AvgSize: 15, Count: 2}},
		LargeTiles: map[int64][]LargeTile{
			400000: {{Z: 2, X: 3, Y: 1, Size: 450000}},
			500000: nil,
		},
	}
	var buf bytes.Buffer
	stats.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "test.mbtiles")
	assert.Contains(t, out, "450000")
	assert.Contains(t, out, "Large tiles with size > 500000 bytes: 0")
}
