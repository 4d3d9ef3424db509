package main

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

//ancestorTile 计算覆盖target的祖先瓦片及级差
// 仅允许 target.Z >= maxzoom 的超采样寻址
func ancestorTile(target maptile.Tile, maxzoom int) (maptile.Tile, uint32, error) {
	if maxzoom < 0 || int(target.Z) < maxzoom {
		return maptile.Tile{}, 0, fmt.Errorf("target z%d against source maxzoom %d: %w", target.Z, maxzoom, ErrOutOfRange)
	}
	delta := uint32(int(target.Z) - maxzoom)
	return maptile.New(target.X>>delta, target.Y>>delta, maptile.Zoom(maxzoom)), delta, nil
}

//quadrant 目标瓦片在祖先瓦片2^delta细分中的象限
func quadrant(target maptile.Tile, delta uint32) (uint32, uint32) {
	mask := uint32(1)<<delta - 1
	return target.X & mask, target.Y & mask
}

//clipWindow 祖先瓦片局部坐标系中的裁剪窗口
type clipWindow struct {
	OriginX int64
	OriginY int64
	Width   int64
}

//clipRect 计算目标象限的裁剪窗口
// extent必须能被2^delta整除，否则无法精确裁剪
func clipRect(extent int64, delta uint32, qx, qy uint32) (clipWindow, error) {
	if extent <= 0 || extent%(1<<delta) != 0 {
		return clipWindow{}, fmt.Errorf("extent %d with delta %d: %w", extent, delta, ErrPrecisionLoss)
	}
	width := extent >> delta
	return clipWindow{
		OriginX: int64(qx) * width,
		OriginY: int64(qy) * width,
		Width:   width,
	}, nil
}

//tileIsAncestor tile是否处于ancestor覆盖范围内
func tileIsAncestor(tile, ancestor maptile.Tile) bool {
	if tile.Z < ancestor.Z {
		return false
	}
	d := uint32(tile.Z - ancestor.Z)
	if d >= 32 {
		return ancestor.X == 0 && ancestor.Y == 0
	}
	return tile.X>>d == ancestor.X && tile.Y>>d == ancestor.Y
}

//childrenAtZoom 瓦片在zoom级别下的全部后代
func childrenAtZoom(t maptile.Tile, zoom maptile.Zoom) []maptile.Tile {
	if zoom < t.Z {
		return nil
	}
	d := uint32(zoom - t.Z)
	n := uint32(1) << d
	out := make([]maptile.Tile, 0, n*n)
	for dy := uint32(0); dy < n; dy++ {
		for dx := uint32(0); dx < n; dx++ {
			out = append(out, maptile.New(t.X<<d+dx, t.Y<<d+dy, zoom))
		}
	}
	return out
}

//flipRow xyz与tms行号互转
func flipRow(t maptile.Tile) uint32 {
	return uint32(1)<<uint32(t.Z) - 1 - t.Y
}
