package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivRound(t *testing.T) {
	assert.Equal(t, int64(2), divRound(4, 2))
	assert.Equal(t, int64(3), divRound(5, 2)) // 0.5进位
	assert.Equal(t, int64(2), divRound(9, 4))
	assert.Equal(t, int64(-2), divRound(-5, 2))
	assert.Equal(t, int64(-2), divRound(-9, 4))
}

func pointFeature(x, y int32) MVTFeature {
	return MVTFeature{
		Type:     mvtPoint,
		Geometry: []uint32{uint32(mvtMoveto) | 1<<3, zzEnc(x), zzEnc(y)},
	}
}

func ringFeature(ring []point) MVTFeature {
	geom := []uint32{uint32(mvtMoveto) | 1<<3, zzEnc(int32(ring[0].X)), zzEnc(int32(ring[0].Y))}
	geom = append(geom, uint32(mvtLineto)|uint32(len(ring)-1)<<3)
	prev := ring[0]
	for _, p := range ring[1:] {
		geom = append(geom, zzEnc(int32(p.X-prev.X)), zzEnc(int32(p.Y-prev.Y)))
		prev = p
	}
	geom = append(geom, uint32(mvtClosepath))
	return MVTFeature{Type: mvtPolygon, Geometry: geom}
}

func TestClipFeaturePoint(t *testing.T) {
	f := pointFeature(10, 10)

	// 左上象限：坐标放大到满图幅
	win, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)
	got, ok := clipFeature(f, win, 4096, 0)
	require.True(t, ok)
	assert.Equal(t, []uint32{uint32(mvtMoveto) | 1<<3, zzEnc(20), zzEnc(20)}, got.Geometry)

	// 与该点无交的象限：整个要素丢弃
	win, err = clipRect(4096, 1, 1, 1)
	require.NoError(t, err)
	_, ok = clipFeature(f, win, 4096, 0)
	assert.False(t, ok)
}

func TestClipFeatureLine(t *testing.T) {
	f := MVTFeature{
		Type: mvtLinestring,
		Geometry: []uint32{
			uint32(mvtMoveto) | 1<<3, zzEnc(1000), zzEnc(1000),
			uint32(mvtLineto) | 1<<3, zzEnc(2000), zzEnc(2000),
		},
	}
	win, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)
	got, ok := clipFeature(f, win, 4096, 0)
	require.True(t, ok)

	s, err := parseGeometry(mvtLinestring, got.Geometry)
	require.NoError(t, err)
	require.Len(t, s.lines, 1)
	assert.Equal(t, []point{{2000, 2000}, {4000, 4000}}, s.lines[0])
}

func TestClipFeaturePolygonFullExtent(t *testing.T) {
	// 覆盖全图幅的水面多边形，每个象限都应得到覆盖全图幅的输出环
	f := ringFeature([]point{{0, 0}, {4096, 0}, {4096, 4096}, {0, 4096}})
	for qy := uint32(0); qy < 2; qy++ {
		for qx := uint32(0); qx < 2; qx++ {
			win, err := clipRect(4096, 1, qx, qy)
			require.NoError(t, err)
			got, ok := clipFeature(f, win, 4096, 0)
			require.True(t, ok)

			s, err := parseGeometry(mvtPolygon, got.Geometry)
			require.NoError(t, err)
			require.Len(t, s.rings, 1)
			assert.Equal(t, 2*int64(4096)*4096, ringArea2(s.rings[0]))
			assert.ElementsMatch(t, []point{{0, 0}, {4096, 0}, {4096, 4096}, {0, 4096}}, s.rings[0])
		}
	}
}

func TestClipFeaturePolygonDegenerate(t *testing.T) {
	// 目标象限外的多边形整体丢弃
	f := ringFeature([]point{{100, 100}, {200, 100}, {200, 200}, {100, 200}})
	win, err := clipRect(4096, 1, 1, 1)
	require.NoError(t, err)
	_, ok := clipFeature(f, win, 4096, 0)
	assert.False(t, ok)

	// 裁剪后退化成一条线的多边形同样丢弃
	f = ringFeature([]point{{2000, 100}, {2048, 100}, {2048, 200}, {2000, 200}})
	win, err = clipRect(4096, 1, 1, 0)
	require.NoError(t, err)
	_, ok = clipFeature(f, win, 4096, 0)
	assert.False(t, ok)
}

func multiRingFeature(rings ...[]point) MVTFeature {
	var stream []uint32
	var cx, cy int64
	for _, ring := range rings {
		stream = append(stream, uint32(mvtMoveto)|1<<3, zzEnc(int32(ring[0].X-cx)), zzEnc(int32(ring[0].Y-cy)))
		cx, cy = ring[0].X, ring[0].Y
		stream = append(stream, uint32(mvtLineto)|uint32(len(ring)-1)<<3)
		for _, p := range ring[1:] {
			stream = append(stream, zzEnc(int32(p.X-cx)), zzEnc(int32(p.Y-cy)))
			cx, cy = p.X, p.Y
		}
		stream = append(stream, uint32(mvtClosepath))
	}
	return MVTFeature{Type: mvtPolygon, Geometry: stream}
}

func TestClipFeatureInnerRingFollowsOuter(t *testing.T) {
	// 外环带一个岛，两环都与象限相交时一起保留
	f := multiRingFeature(
		[]point{{0, 0}, {1024, 0}, {1024, 1024}, {0, 1024}},
		[]point{{200, 200}, {200, 600}, {600, 600}, {600, 200}}, // 逆时针内环
	)

	win, err := clipRect(4096, 2, 0, 0)
	require.NoError(t, err)
	got, ok := clipFeature(f, win, 4096, 0)
	require.True(t, ok)
	s, err := parseGeometry(mvtPolygon, got.Geometry)
	require.NoError(t, err)
	require.Len(t, s.rings, 2)
	assert.True(t, ringArea2(s.rings[0]) > 0)
	assert.True(t, ringArea2(s.rings[1]) < 0)
}

func TestClipFeatureDroppedInnerRing(t *testing.T) {
	// 外环被裁空时内环不得单独出现
	f := multiRingFeature(
		[]point{{100, 100}, {900, 100}, {900, 900}, {100, 900}},
		[]point{{200, 200}, {200, 800}, {800, 800}, {800, 200}},
	)

	win, err := clipRect(4096, 1, 1, 1)
	require.NoError(t, err)
	_, ok := clipFeature(f, win, 4096, 0)
	assert.False(t, ok)
}

func TestClipFeatureBuffer(t *testing.T) {
	// 缓冲区内紧贴象限边界外侧的点被保留
	f := pointFeature(2060, 2060)
	win, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)

	_, ok := clipFeature(f, win, 4096, 0)
	assert.False(t, ok)

	got, ok := clipFeature(f, win, 4096, 64)
	require.True(t, ok)
	s, err := parseGeometry(mvtPoint, got.Geometry)
	require.NoError(t, err)
	assert.Equal(t, []point{{4120, 4120}}, s.points)
}

func TestClipFeatureKeepsTags(t *testing.T) {
	f := pointFeature(10, 10)
	f.Tags = []uint32{0, 1}
	f.ID = 42
	f.HasID = true
	win, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)
	got, ok := clipFeature(f, win, 4096, 0)
	require.True(t, ok)
	assert.Equal(t, f.Tags, got.Tags)
	assert.Equal(t, uint64(42), got.ID)
	assert.True(t, got.HasID)
}

func TestClipFeatureStepwiseConsistent(t *testing.T) {
	// 一次跨两级与分两次各跨一级结果一致
	f := ringFeature([]point{{1000, 1000}, {3000, 1000}, {3000, 3000}, {1000, 3000}})

	direct, err := clipRect(4096, 2, 0, 0)
	require.NoError(t, err)
	gotDirect, ok := clipFeature(f, direct, 4096, 0)
	require.True(t, ok)

	first, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)
	mid, ok := clipFeature(f, first, 4096, 0)
	require.True(t, ok)
	second, err := clipRect(4096, 1, 0, 0)
	require.NoError(t, err)
	gotStepped, ok := clipFeature(mid, second, 4096, 0)
	require.True(t, ok)

	sd, err := parseGeometry(mvtPolygon, gotDirect.Geometry)
	require.NoError(t, err)
	ss, err := parseGeometry(mvtPolygon, gotStepped.Geometry)
	require.NoError(t, err)
	require.Len(t, sd.rings, 1)
	require.Len(t, ss.rings, 1)
	assert.Equal(t, ringArea2(sd.rings[0]), ringArea2(ss.rings[0]))
	assert.ElementsMatch(t, sd.rings[0], ss.rings[0])
}
