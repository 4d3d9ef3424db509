package main

import (
	"fmt"
)

//shapes 指令流解码后的结构化几何
type shapes struct {
	points []point
	lines  [][]point
	rings  [][]point
}

func (s shapes) empty() bool {
	return len(s.points) == 0 && len(s.lines) == 0 && len(s.rings) == 0
}

//divRound 有理缩放除法，四舍五入且0.5进位（向正无穷）
// 相邻瓦片舍入不一致会产生可见接缝，d必须为正
func divRound(n, d int64) int64 {
	q := n / d
	r := n % d
	if r < 0 {
		q--
		r += d
	}
	if 2*r >= d {
		q++
	}
	return q
}

//parseGeometry 解码MVT几何指令流
// MoveTo=1 LineTo=2 ClosePath=7，坐标为zigzag增量
func parseGeometry(t mvtGeometryType, geom []uint32) (shapes, error) {
	var s shapes
	var cursorX, cursorY int64
	var coords []point

	i := 0
	for i < len(geom) {
		id := mvtOperation(geom[i] & 0x7)
		count := int(geom[i] >> 3)
		switch id {
		case mvtMoveto, mvtLineto:
			i++
			if i+count*2 > len(geom) {
				return s, fmt.Errorf("truncated geometry stream: %w", ErrCorruptPayload)
			}
			for n := 0; n < count; n++ {
				cursorX += int64(zzDec(geom[i]))
				cursorY += int64(zzDec(geom[i+1]))
				i += 2
				p := point{cursorX, cursorY}

				switch t {
				case mvtPoint:
					if id == mvtMoveto {
						s.points = append(s.points, p)
					}
				case mvtLinestring:
					if id == mvtMoveto {
						// moveTo in a linestring context means a new line is started at that point
						if len(coords) > 0 {
							s.lines = append(s.lines, coords)
						}
						coords = []point{p}
					} else {
						coords = append(coords, p)
					}
				case mvtPolygon:
					if id == mvtMoveto {
						coords = []point{p}
					} else {
						coords = append(coords, p)
					}
				}
			}
		case mvtClosepath:
			// close path -- polygon ring ends here
			if t == mvtPolygon {
				s.rings = append(s.rings, coords)
				coords = nil
			}
			i++
		default:
			return s, fmt.Errorf("unknown geometry command %d: %w", id, ErrCorruptPayload)
		}
	}
	if t == mvtLinestring && len(coords) > 0 {
		s.lines = append(s.lines, coords)
	}
	return s, nil
}

//encodeGeometry 结构化几何编码回指令流
func encodeGeometry(t mvtGeometryType, s shapes) []uint32 {
	var out []uint32
	var cx, cy int64

	push := func(p point) {
		out = append(out, zzEnc(int32(p.X-cx)), zzEnc(int32(p.Y-cy)))
		cx, cy = p.X, p.Y
	}
	command := func(id mvtOperation, count int) {
		out = append(out, uint32(id)&0x7|uint32(count)<<3)
	}

	switch t {
	case mvtPoint:
		if len(s.points) == 0 {
			return nil
		}
		command(mvtMoveto, len(s.points))
		for _, p := range s.points {
			push(p)
		}
	case mvtLinestring:
		for _, line := range s.lines {
			if len(line) < 2 {
				continue
			}
			command(mvtMoveto, 1)
			push(line[0])
			command(mvtLineto, len(line)-1)
			for _, p := range line[1:] {
				push(p)
			}
		}
	case mvtPolygon:
		for _, ring := range s.rings {
			if len(ring) < 3 {
				continue
			}
			command(mvtMoveto, 1)
			push(ring[0])
			command(mvtLineto, len(ring)-1)
			for _, p := range ring[1:] {
				push(p)
			}
			command(mvtClosepath, 0)
		}
	}
	return out
}

func rescalePoint(p point, win clipWindow, extent int64) point {
	return point{
		X: divRound((p.X-win.OriginX)*extent, win.Width),
		Y: divRound((p.Y-win.OriginY)*extent, win.Width),
	}
}

//dedupe 去除整型舍入后产生的连续重复点
func dedupe(pts []point) []point {
	if len(pts) == 0 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

//clipFeature 将要素几何裁剪到目标象限窗口并缩放到输出坐标系
// 几何完全退化的要素被整体丢弃，属性原样保留
func clipFeature(f MVTFeature, win clipWindow, extent int64, buffer int64) (MVTFeature, bool) {
	s, err := parseGeometry(f.Type, f.Geometry)
	if err != nil {
		return MVTFeature{}, false
	}

	// 裁剪在祖先坐标系中进行，缩放放在裁剪之后保证精度
	buf := divRound(buffer*win.Width, extent)
	box := bbox{
		MinX: win.OriginX - buf,
		MinY: win.OriginY - buf,
		MaxX: win.OriginX + win.Width + buf,
		MaxY: win.OriginY + win.Width + buf,
	}

	var out shapes
	switch f.Type {
	case mvtPoint:
		for _, p := range s.points {
			if p.X >= box.MinX && p.X <= box.MaxX && p.Y >= box.MinY && p.Y <= box.MaxY {
				out.points = append(out.points, rescalePoint(p, win, extent))
			}
		}
	case mvtLinestring:
		for _, line := range s.lines {
			for _, piece := range lineclip(line, box) {
				scaled := make([]point, len(piece))
				for i, p := range piece {
					scaled[i] = rescalePoint(p, win, extent)
				}
				scaled = dedupe(scaled)
				if len(scaled) >= 2 {
					out.lines = append(out.lines, scaled)
				}
			}
		}
	case mvtPolygon:
		// 外环被裁空时其内环一并丢弃
		skipInner := false
		for _, ring := range s.rings {
			outer := ringArea2(ring) > 0
			if !outer && skipInner {
				continue
			}
			clipped := polygonclip(ring, box)
			scaled := make([]point, len(clipped))
			for i, p := range clipped {
				scaled[i] = rescalePoint(p, win, extent)
			}
			scaled = dedupe(scaled)
			if len(scaled) > 1 && scaled[0] == scaled[len(scaled)-1] {
				scaled = scaled[:len(scaled)-1]
			}
			degenerate := len(scaled) < 3 || ringArea2(scaled) == 0
			if outer {
				skipInner = degenerate
			}
			if !degenerate {
				out.rings = append(out.rings, scaled)
			}
		}
	default:
		return MVTFeature{}, false
	}

	if out.empty() {
		return MVTFeature{}, false
	}
	return MVTFeature{
		ID:       f.ID,
		HasID:    f.HasID,
		Type:     f.Type,
		Tags:     f.Tags,
		Geometry: encodeGeometry(f.Type, out),
	}, true
}
