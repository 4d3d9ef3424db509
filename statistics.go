package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/viper"
)

//largeTileThresholds 大瓦片告警阈值(字节)
var largeTileThresholds = []int64{400000, 500000}

//ZoomStats 单个级别的瓦片大小统计
type ZoomStats struct {
	Zoom    int
	MinSize int64
	MaxSize int64
	AvgSize float64
	Count   int64
}

//LargeTile 超过阈值的瓦片
type LargeTile struct {
	Z    int
	X    int64
	Y    int64
	Size int64
}

//Statistics mbtiles存档统计信息
type Statistics struct {
	Name       string
	Zooms      []ZoomStats
	LargeTiles map[int64][]LargeTile
}

//calcStatistics 统计各级别瓦片大小与超限瓦片
func calcStatistics(m *MBTiles) (*Statistics, error) {
	stats := &Statistics{
		Name:       m.pathname,
		LargeTiles: make(map[int64][]LargeTile),
	}
	rows, err := m.db.Query(`SELECT zoom_level, min(length(tile_data)), max(length(tile_data)), avg(length(tile_data)), count(*) FROM tiles GROUP BY zoom_level ORDER BY zoom_level ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var zs ZoomStats
		if err := rows.Scan(&zs.Zoom, &zs.MinSize, &zs.MaxSize, &zs.AvgSize, &zs.Count); err != nil {
			return nil, err
		}
		stats.Zooms = append(stats.Zooms, zs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, threshold := range largeTileThresholds {
		large, err := calcLargeTiles(m, threshold)
		if err != nil {
			return nil, err
		}
		stats.LargeTiles[threshold] = large
	}
	return stats, nil
}

func calcLargeTiles(m *MBTiles, threshold int64) ([]LargeTile, error) {
	// 行号按tms翻转回xyz
	rows, err := m.db.Query(`SELECT zoom_level, tile_column, ((1 << zoom_level) - 1 - tile_row), length(tile_data) FROM tiles WHERE length(tile_data) > ? ORDER BY zoom_level ASC;`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LargeTile
	for rows.Next() {
		var lt LargeTile
		if err := rows.Scan(&lt.Z, &lt.X, &lt.Y, &lt.Size); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

//Print 以对齐表格输出统计结果
func (s *Statistics) Print(w io.Writer) {
	fmt.Fprintf(w, "Statistics for %s:\n", s.Name)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "z\tsize(min)\tsize(max)\tsize(avg)\tcount")
	for _, zs := range s.Zooms {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f\t%d\n", zs.Zoom, zs.MinSize, zs.MaxSize, zs.AvgSize, zs.Count)
	}
	tw.Flush()

	for _, threshold := range largeTileThresholds {
		large := s.LargeTiles[threshold]
		fmt.Fprintf(w, "Large tiles with size > %d bytes: %d\n", threshold, len(large))
		if len(large) == 0 {
			continue
		}
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "z\tx\ty\tsize")
		for _, lt := range large {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", lt.Z, lt.X, lt.Y, lt.Size)
		}
		tw.Flush()
	}
}

//runStats stats子命令入口
func runStats(input string) error {
	m, err := OpenMBTiles(input, viper.GetString("output.scheme"))
	if err != nil {
		return err
	}
	defer m.Close()
	stats, err := calcStatistics(m)
	if err != nil {
		return err
	}
	stats.Print(os.Stdout)
	return nil
}
