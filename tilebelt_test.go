package main

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAncestorTile(t *testing.T) {
	target := maptile.New(17, 10, 4)
	ancestor, delta, err := ancestorTile(target, 2)
	require.NoError(t, err)
	assert.Equal(t, maptile.New(4, 2, 2), ancestor)
	assert.Equal(t, uint32(2), delta)

	// 级差为0时祖先即自身
	ancestor, delta, err = ancestorTile(target, 4)
	require.NoError(t, err)
	assert.Equal(t, target, ancestor)
	assert.Equal(t, uint32(0), delta)
}

func TestAncestorTileOutOfRange(t *testing.T) {
	_, _, err := ancestorTile(maptile.New(1, 1, 2), 5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, _, err = ancestorTile(maptile.New(0, 0, 0), -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestQuadrant(t *testing.T) {
	qx, qy := quadrant(maptile.New(17, 10, 4), 2)
	assert.Equal(t, uint32(1), qx)
	assert.Equal(t, uint32(2), qy)

	qx, qy = quadrant(maptile.New(17, 10, 4), 0)
	assert.Equal(t, uint32(0), qx)
	assert.Equal(t, uint32(0), qy)
}

func TestClipRectPartition(t *testing.T) {
	// 四个象限的窗口应不重叠地铺满图幅
	seen := make(map[clipWindow]bool)
	for qy := uint32(0); qy < 2; qy++ {
		for qx := uint32(0); qx < 2; qx++ {
			win, err := clipRect(4096, 1, qx, qy)
			require.NoError(t, err)
			assert.Equal(t, int64(2048), win.Width)
			assert.Equal(t, int64(qx)*2048, win.OriginX)
			assert.Equal(t, int64(qy)*2048, win.OriginY)
			seen[win] = true
		}
	}
	assert.Len(t, seen, 4)
}

func TestClipRectPrecisionLoss(t *testing.T) {
	_, err := clipRect(4095, 1, 0, 0)
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	_, err = clipRect(0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrPrecisionLoss)
}

func TestTileIsAncestor(t *testing.T) {
	root := maptile.New(1, 0, 1)
	assert.True(t, tileIsAncestor(maptile.New(1, 0, 1), root))
	assert.True(t, tileIsAncestor(maptile.New(5, 2, 3), root))
	assert.False(t, tileIsAncestor(maptile.New(3, 2, 3), root))
	assert.False(t, tileIsAncestor(maptile.New(0, 0, 0), root))
}

func TestChildrenAtZoom(t *testing.T) {
	children := childrenAtZoom(maptile.New(1, 1, 1), 3)
	assert.Len(t, children, 16)
	for _, c := range children {
		assert.True(t, tileIsAncestor(c, maptile.New(1, 1, 1)))
	}
	assert.Equal(t, []maptile.Tile{maptile.New(1, 1, 1)}, childrenAtZoom(maptile.New(1, 1, 1), 1))
	assert.Nil(t, childrenAtZoom(maptile.New(1, 1, 1), 0))
}

func TestFlipRow(t *testing.T) {
	assert.Equal(t, uint32(3), flipRow(maptile.New(0, 0, 2)))
	assert.Equal(t, uint32(0), flipRow(maptile.New(0, 3, 2)))
	// 翻转两次回到原值
	tile := maptile.New(5, 9, 4)
	assert.Equal(t, tile.Y, flipRow(maptile.New(tile.X, flipRow(tile), tile.Z)))
}
