package main

//point 瓦片局部整型坐标
type point struct {
	X, Y int64
}

//bbox 裁剪窗口，闭区间
type bbox struct {
	MinX, MinY, MaxX, MaxY int64
}

// bit code reflects the point position relative to the bbox:
//
//         left  mid  right
//    top  1001  1000  1010
//    mid  0001  0000  0010
// bottom  0101  0100  0110
func bitCode(p point, b bbox) uint8 {
	var code uint8
	if p.X < b.MinX {
		code |= 1 // left
	} else if p.X > b.MaxX {
		code |= 2 // right
	}
	if p.Y < b.MinY {
		code |= 4 // bottom
	} else if p.Y > b.MaxY {
		code |= 8 // top
	}
	return code
}

// intersect a segment against one of the 4 lines that make up the bbox
func intersect(a, b point, edge uint8, box bbox) point {
	switch {
	case edge&8 > 0: // top
		return point{a.X + (b.X-a.X)*(box.MaxY-a.Y)/(b.Y-a.Y), box.MaxY}
	case edge&4 > 0: // bottom
		return point{a.X + (b.X-a.X)*(box.MinY-a.Y)/(b.Y-a.Y), box.MinY}
	case edge&2 > 0: // right
		return point{box.MaxX, a.Y + (b.Y-a.Y)*(box.MaxX-a.X)/(b.X-a.X)}
	case edge&1 > 0: // left
		return point{box.MinX, a.Y + (b.Y-a.Y)*(box.MinX-a.X)/(b.X-a.X)}
	}
	// callers only pass codes with at least one edge bit set
	return a
}

//lineclip Cohen-Sutherland折线裁剪
// 一条输入线可能裁出多段输出线
func lineclip(coords []point, box bbox) [][]point {
	if len(coords) < 2 {
		return nil
	}
	codeA := bitCode(coords[0], box)
	var part []point
	var result [][]point

	for i := 1; i < len(coords); i++ {
		a := coords[i-1]
		b := coords[i]
		codeB := bitCode(b, box)
		lastCode := codeB

		for {
			if codeA|codeB == 0 {
				// accept
				part = append(part, a)

				if codeB != lastCode {
					// segment went outside
					part = append(part, b)

					if i < len(coords)-1 {
						// start a new line
						result = append(result, part)
						part = nil
					}
				} else if i == len(coords)-1 {
					part = append(part, b)
				}
				break
			} else if codeA&codeB > 0 {
				// trivial reject
				break
			} else if codeA > 0 {
				// a is outside, intersect with clip edge
				a = intersect(a, b, codeA, box)
				codeA = bitCode(a, box)
			} else {
				// b outside
				b = intersect(a, b, codeB, box)
				codeB = bitCode(b, box)
			}
		}

		codeA = lastCode
	}

	if len(part) > 0 {
		result = append(result, part)
	}
	return result
}

//polygonclip Sutherland-Hodgman多边形裁剪，逐边裁剪保持环方向
func polygonclip(points []point, box bbox) []point {
	if len(points) == 0 {
		return nil
	}
	for _, edge := range []uint8{1, 2, 4, 8} {
		var result []point
		prev := points[len(points)-1]
		prevInside := bitCode(prev, box)&edge == 0

		for _, p := range points {
			inside := bitCode(p, box)&edge == 0
			if inside != prevInside {
				result = append(result, intersect(prev, p, edge, box))
			}
			if inside {
				result = append(result, p)
			}
			prev = p
			prevInside = inside
		}

		points = result
		if len(points) == 0 {
			break
		}
	}
	return points
}

//ringArea2 环的两倍有向面积（鞋带公式）
func ringArea2(ring []point) int64 {
	var area int64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i].X * ring[j].Y
		area -= ring[i].Y * ring[j].X
	}
	return area
}
