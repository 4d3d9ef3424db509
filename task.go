package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

//MBTileVersion mbtiles版本号
const MBTileVersion = "1.2"

//Failure 单瓦片失败记录，留给调用方上报
type Failure struct {
	T   maptile.Tile
	Err error
}

//Summary 批量合成汇总
type Summary struct {
	Produced int64
	Empty    int64
	Failed   int64
	Failures []Failure
}

//Task 超采样任务
type Task struct {
	ID           string
	Zooms        []maptile.Zoom
	src          TileArchive
	dst          TileStore
	oz           *Overzoomer
	bound        maptile.Set // 源maxzoom级别的过滤集，nil表示全范围
	Bar          *pb.ProgressBar
	workerCount  int
	savePipeSize int
	wg           sync.WaitGroup
	saveWg       sync.WaitGroup
	workers      chan struct{}
	savingpipe   chan Tile
	mu           sync.Mutex
	summary      Summary
}

//NewTask 创建超采样任务
func NewTask(src TileArchive, dst TileStore, oz *Overzoomer, zooms []maptile.Zoom) *Task {
	id, _ := shortid.Generate()

	task := &Task{
		ID:    id,
		Zooms: zooms,
		src:   src,
		dst:   dst,
		oz:    oz,
	}
	task.workerCount = viper.GetInt("task.workers")
	if task.workerCount < 1 {
		task.workerCount = 4
	}
	task.savePipeSize = viper.GetInt("task.savepipe")
	if task.savePipeSize < 1 {
		task.savePipeSize = 1
	}
	task.workers = make(chan struct{}, task.workerCount)
	task.savingpipe = make(chan Tile, task.savePipeSize)
	return task
}

//SetBound 以geojson集合限定合成范围
// 过滤集建在源maxzoom级别上，目标瓦片按其祖先是否命中判定
func (task *Task) SetBound(c orb.Collection) {
	set := make(maptile.Set)
	for _, g := range c {
		for t := range tilecover.Geometry(g, maptile.Zoom(task.oz.Maxzoom)) {
			set[t] = true
		}
	}
	task.bound = set
}

func (task *Task) allowed(ancestor maptile.Tile) bool {
	if task.bound == nil {
		return true
	}
	return task.bound[ancestor]
}

//savePipe 保存瓦片管道
func (task *Task) savePipe() {
	defer task.saveWg.Done()
	for tile := range task.savingpipe {
		err := task.dst.PutTile(tile)
		if err != nil {
			log.Errorf("save %v tile to mbtiles db error ~ %s", tile.T, err)
		}
	}
}

func (task *Task) record(t maptile.Tile, data []byte, err error) {
	task.mu.Lock()
	defer task.mu.Unlock()
	switch {
	case err != nil:
		task.summary.Failed++
		task.summary.Failures = append(task.summary.Failures, Failure{T: t, Err: err})
	case data == nil:
		task.summary.Empty++
	default:
		task.summary.Produced++
	}
}

//tileWorker 合成单个目标瓦片
func (task *Task) tileWorker(data []byte, target maptile.Tile, delta uint32) {
	defer task.wg.Done()
	defer func() {
		<-task.workers
	}()
	out, err := task.oz.FromAncestor(data, target, delta)
	task.record(target, out, err)
	if err != nil {
		log.Errorf("overzoom %v error ~ %s", target, err)
		return
	}
	if out != nil {
		task.savingpipe <- Tile{T: target, C: out}
	}
}

//runZoom 透传指定级别的源瓦片，maxzoom级别再派生各目标级别
func (task *Task) runZoom(z maptile.Zoom) error {
	tiles := make(chan Tile, task.workerCount)
	errc := make(chan error, 1)
	go func() {
		defer close(tiles)
		errc <- task.src.Tiles(z, tiles)
	}()

	for tile := range tiles {
		task.Bar.Increment()
		task.savingpipe <- tile
		if int(z) != task.oz.Maxzoom || !task.allowed(tile.T) {
			continue
		}
		for _, tz := range task.Zooms {
			if tz <= z {
				continue
			}
			delta := uint32(tz - z)
			for _, child := range childrenAtZoom(tile.T, tz) {
				task.workers <- struct{}{}
				task.Bar.Increment()
				task.wg.Add(1)
				go task.tileWorker(tile.C, child, delta)
			}
		}
	}
	return <-errc
}

func (task *Task) writeMetadata() error {
	meta, err := task.src.Metadata()
	if err != nil {
		return err
	}
	maxzoom := task.oz.Maxzoom
	for _, z := range task.Zooms {
		if int(z) > maxzoom {
			maxzoom = int(z)
		}
	}
	meta["maxzoom"] = strconv.Itoa(maxzoom)
	meta["version"] = MBTileVersion
	return task.dst.PutMetadata(meta)
}

//Run 执行任务：源瓦片原样复制到目标档案，再合成目标级别
// 单瓦片失败只计入汇总，不中止批量
func (task *Task) Run() (*Summary, error) {
	zooms, err := task.src.Zooms()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, z := range zooms {
		c, err := task.src.CountTiles(z)
		if err != nil {
			return nil, err
		}
		total += c
		if int(z) == task.oz.Maxzoom {
			var children int64
			for _, tz := range task.Zooms {
				if int(tz) > task.oz.Maxzoom {
					d := uint(int(tz) - task.oz.Maxzoom)
					children += 1 << (2 * d)
				}
			}
			total += c * children
		}
	}

	task.Bar = pb.New64(total).Prefix("Task : ")
	if viper.GetBool("task.quiet") {
		task.Bar.NotPrint = true
	}
	task.Bar.Start()

	task.saveWg.Add(1)
	go task.savePipe()

	for _, z := range zooms {
		if err := task.runZoom(z); err != nil {
			return nil, err
		}
	}
	task.wg.Wait()
	close(task.savingpipe)
	task.saveWg.Wait()

	if err := task.writeMetadata(); err != nil {
		return nil, err
	}
	task.Bar.FinishPrint(fmt.Sprintf("task %s finished ~", task.ID))
	return &task.summary, nil
}
