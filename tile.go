package main

import (
	"errors"

	"github.com/paulmach/orb/maptile"
)

//ZoomMin 最小级别
const ZoomMin = 0

//ZoomMax 最大级别
const ZoomMax = 24

//Tile 自定义瓦片存储
type Tile struct {
	T maptile.Tile
	C []byte
}

// Constants representing tile compression/format types
const (
	GZIP string = "gzip" // encoding = gzip
	ZLIB        = "zlib" // encoding = deflate
	NONE        = "none"
	PBF         = "pbf"
)

// 错误分类，单瓦片级错误不中止批量任务
var (
	//ErrOutOfRange 瓦片寻址超限
	ErrOutOfRange = errors.New("tile address out of range")
	//ErrPrecisionLoss 图幅范围无法被2^delta整除
	ErrPrecisionLoss = errors.New("extent not divisible by quadrant count")
	//ErrCorruptPayload 瓦片数据结构损坏
	ErrCorruptPayload = errors.New("corrupt tile payload")
	//ErrCompression 瓦片解压失败
	ErrCompression = errors.New("tile decompression failed")
)
