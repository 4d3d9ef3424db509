package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/cheggaaa/pb.v1"
)

//maybeCompress 未压缩的瓦片写库前统一gzip
func maybeCompress(data []byte) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return data, nil
	}
	return compressTile(data, GZIP)
}

//parseTilePath 解析z/x/y.pbf形式的相对路径
func parseTilePath(rel string) (maptile.Tile, bool) {
	ext := filepath.Ext(rel)
	if ext != ".pbf" && ext != ".mvt" {
		return maptile.Tile{}, false
	}
	parts := strings.Split(strings.TrimSuffix(filepath.ToSlash(rel), ext), "/")
	if len(parts) != 3 {
		return maptile.Tile{}, false
	}
	z, err := strconv.Atoi(parts[0])
	if err != nil || z < ZoomMin || z > ZoomMax {
		return maptile.Tile{}, false
	}
	x, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	y, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	return maptile.Tile{X: uint32(x), Y: uint32(y), Z: maptile.Zoom(z)}, true
}

//loadDirMetadata 读取瓦片目录下的metadata.json,非字符串值按json串存储
func loadDirMetadata(dir string) (map[string]string, error) {
	meta := make(map[string]string)
	path := filepath.Join(dir, "metadata.json")
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return meta, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("found metadata.json, reading ~")
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse metadata.json: %v", err)
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			meta[k] = s
			continue
		}
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		meta[k] = string(buf)
	}
	return meta, nil
}

//runConvert convert子命令入口
func runConvert(dir, output string) error {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("tile directory(%s) not exist", dir)
	}
	meta, err := loadDirMetadata(dir)
	if err != nil {
		return err
	}
	dst, err := CreateMBTiles(output, viper.GetString("output.scheme"))
	if err != nil {
		return err
	}
	defer dst.Close()

	var paths []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if _, ok := parseTilePath(rel); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	bar := pb.New(len(paths)).Prefix("convert")
	if viper.GetBool("task.quiet") {
		bar.NotPrint = true
	}
	bar.Start()

	var wg sync.WaitGroup
	var saveWg sync.WaitGroup
	workers := make(chan struct{}, viper.GetInt("task.workers"))
	savingpipe := make(chan Tile, viper.GetInt("task.savepipe"))
	errs := make(chan error, 1)

	saveWg.Add(1)
	go func() {
		defer saveWg.Done()
		for tile := range savingpipe {
			if err := dst.PutTile(tile); err != nil {
				select {
				case errs <- err:
				default:
				}
			}
			bar.Increment()
		}
	}()

	for _, path := range paths {
		rel, _ := filepath.Rel(dir, path)
		t, _ := parseTilePath(rel)
		wg.Add(1)
		workers <- struct{}{}
		go func(path string, t maptile.Tile) {
			defer wg.Done()
			defer func() { <-workers }()
			data, err := ioutil.ReadFile(path)
			if err == nil {
				data, err = maybeCompress(data)
			}
			if err != nil {
				log.Errorf("convert tile %v failed ~ %s", t, err)
				select {
				case errs <- err:
				default:
				}
				return
			}
			savingpipe <- Tile{T: t, C: data}
		}(path, t)
	}
	wg.Wait()
	close(savingpipe)
	saveWg.Wait()
	bar.FinishPrint(fmt.Sprintf("convert %s finished ~", dir))

	select {
	case err := <-errs:
		return err
	default:
	}
	if err := dst.PutMetadata(meta); err != nil {
		return err
	}
	if err := optimizeDatabase(dst.db); err != nil {
		return err
	}
	return nil
}
