package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/cheggaaa/pb.v1"
)

//SubdivideOutput 分块输出配置,tiles为[x,y,z]数组
type SubdivideOutput struct {
	Name  string      `json:"name"`
	Tiles [][3]uint32 `json:"tiles"`
}

//SubdivideConfig 分块配置
type SubdivideConfig struct {
	Outputs []SubdivideOutput `json:"outputs"`
}

//subdivideSink 单个分块的写出端
type subdivideSink struct {
	name    string
	store   *MBTiles
	roots   []maptile.Tile
	minzoom maptile.Zoom
	maxzoom maptile.Zoom
	count   int64
}

//wants 瓦片是否落入该分块的任一根瓦片
func (s *subdivideSink) wants(t maptile.Tile) bool {
	for _, root := range s.roots {
		if tileIsAncestor(t, root) {
			return true
		}
	}
	return false
}

func (s *subdivideSink) write(tile Tile) error {
	if err := s.store.PutTile(tile); err != nil {
		return err
	}
	if tile.T.Z > s.maxzoom {
		s.maxzoom = tile.T.Z
	}
	if tile.T.Z < s.minzoom {
		s.minzoom = tile.T.Z
	}
	s.count++
	return nil
}

//finish 复制源元数据并覆盖zoom范围
func (s *subdivideSink) finish(meta map[string]string) error {
	out := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if s.count > 0 {
		out["minzoom"] = strconv.Itoa(int(s.minzoom))
		out["maxzoom"] = strconv.Itoa(int(s.maxzoom))
	}
	if err := s.store.PutMetadata(out); err != nil {
		return err
	}
	log.Infof("output %s finished, %d tiles ~", s.name, s.count)
	return s.store.Close()
}

//runSubdivide subdivide子命令入口
func runSubdivide(confpath, input, outdir string) error {
	data, err := ioutil.ReadFile(confpath)
	if err != nil {
		return err
	}
	var conf SubdivideConfig
	if err := json.Unmarshal(data, &conf); err != nil {
		return fmt.Errorf("parse subdivide config: %v", err)
	}
	if len(conf.Outputs) == 0 {
		return fmt.Errorf("subdivide config has no outputs")
	}

	scheme := viper.GetString("output.scheme")
	src, err := OpenMBTiles(input, scheme)
	if err != nil {
		return err
	}
	defer src.Close()
	meta, err := src.Metadata()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outdir, os.ModePerm); err != nil {
		return err
	}
	var sinks []*subdivideSink
	for _, oc := range conf.Outputs {
		path := filepath.Join(outdir, oc.Name+".mbtiles")
		store, err := CreateMBTiles(path, scheme)
		if err != nil {
			return err
		}
		sink := &subdivideSink{name: oc.Name, store: store, minzoom: ZoomMax}
		for _, xyz := range oc.Tiles {
			sink.roots = append(sink.roots, maptile.Tile{X: xyz[0], Y: xyz[1], Z: maptile.Zoom(xyz[2])})
		}
		log.Infof("subdividing output %s to %s ~", oc.Name, path)
		sinks = append(sinks, sink)
	}

	zooms, err := src.Zooms()
	if err != nil {
		return err
	}
	var total int64
	for _, z := range zooms {
		c, err := src.CountTiles(z)
		if err != nil {
			return err
		}
		total += c
	}
	bar := pb.New64(total).Prefix("subdivide")
	if viper.GetBool("task.quiet") {
		bar.NotPrint = true
	}
	bar.Start()

	for _, z := range zooms {
		tiles := make(chan Tile, 64)
		errc := make(chan error, 1)
		go func(zoom maptile.Zoom) {
			errc <- src.Tiles(zoom, tiles)
			close(tiles)
		}(z)
		for tile := range tiles {
			bar.Increment()
			// 不中断路由,允许分块重叠
			for _, sink := range sinks {
				if !sink.wants(tile.T) {
					continue
				}
				if err := sink.write(tile); err != nil {
					return err
				}
			}
		}
		if err := <-errc; err != nil {
			return err
		}
	}
	bar.FinishPrint(fmt.Sprintf("subdivide %s finished ~", input))

	for _, sink := range sinks {
		if err := sink.finish(meta); err != nil {
			return err
		}
	}
	return nil
}
