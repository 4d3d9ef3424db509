package main

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/viper"
)

//Overzoomer 超采样器：由祖先瓦片矢量数据派生更深级别瓦片
// 单次合成是纯CPU计算，不同目标瓦片可并行处理
type Overzoomer struct {
	store   TileStore
	Maxzoom int
	Buffer  int64  // 边界要素保留余量（输出瓦片坐标），默认0
	Scheme  string // 瓦片压缩方案，沿用源档案配置，不逐瓦片探测
}

//NewOverzoomer 创建超采样器，maxzoom取自源档案元数据
func NewOverzoomer(store TileStore) (*Overzoomer, error) {
	meta, err := store.Metadata()
	if err != nil {
		return nil, err
	}
	mz, ok := meta["maxzoom"]
	if !ok {
		return nil, fmt.Errorf("source archive has no maxzoom metadata")
	}
	maxzoom, err := strconv.Atoi(mz)
	if err != nil {
		return nil, fmt.Errorf("source archive has invalid maxzoom %q", mz)
	}
	scheme := viper.GetString("overzoom.compression")
	if scheme == "" {
		scheme = GZIP
	}
	return &Overzoomer{
		store:   store,
		Maxzoom: maxzoom,
		Buffer:  viper.GetInt64("overzoom.buffer"),
		Scheme:  scheme,
	}, nil
}

//Tile 合成单个目标瓦片
// 返回(nil, nil)表示目标瓦片合法地不存在（祖先缺失或无要素存活）
func (o *Overzoomer) Tile(target maptile.Tile) ([]byte, error) {
	ancestor, delta, err := ancestorTile(target, o.Maxzoom)
	if err != nil {
		return nil, err
	}
	data, err := o.store.GetTile(ancestor)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return o.FromAncestor(data, target, delta)
}

//FromAncestor 从已读出的祖先瓦片数据合成目标瓦片
// delta>1时直接按2^delta细分一次完成，无需逐级裁剪
func (o *Overzoomer) FromAncestor(data []byte, target maptile.Tile, delta uint32) ([]byte, error) {
	raw, err := decompressTile(data, o.Scheme)
	if err != nil {
		return nil, err
	}
	src, err := decodeTile(raw)
	if err != nil {
		return nil, err
	}
	qx, qy := quadrant(target, delta)

	out := MVTTile{}
	for _, layer := range src.Layers {
		win, err := clipRect(layer.Extent, delta, qx, qy)
		if err != nil {
			return nil, err
		}
		nl := MVTLayer{
			Version: layer.Version,
			Name:    layer.Name,
			Extent:  layer.Extent,
			Keys:    layer.Keys,
			Values:  layer.Values,
		}
		for _, f := range layer.Features {
			if nf, ok := clipFeature(f, win, layer.Extent, o.Buffer); ok {
				nl.Features = append(nl.Features, nf)
			}
		}
		if len(nl.Features) > 0 {
			out.Layers = append(out.Layers, nl)
		}
	}
	if len(out.Layers) == 0 {
		return nil, nil
	}
	return compressTile(encodeTile(&out), o.Scheme)
}
