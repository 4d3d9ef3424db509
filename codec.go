package main

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
)

// MVT protobuf字段号
const (
	tileLayersField = 3

	layerNameField     = 1
	layerFeaturesField = 2
	layerKeysField     = 3
	layerValuesField   = 4
	layerExtentField   = 5
	layerVersionField  = 15

	featureIDField       = 1
	featureTagsField     = 2
	featureTypeField     = 3
	featureGeometryField = 4

	valueStringField = 1
	valueFloatField  = 2
	valueDoubleField = 3
	valueIntField    = 4
	valueUintField   = 5
	valueSintField   = 6
	valueBoolField   = 7
)

// protobuf线上类型
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

//DefaultExtent MVT默认图幅
const DefaultExtent = 4096

func zzEnc(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

func zzDec(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

type pbfReader struct {
	buf []byte
	pos int
}

func (r *pbfReader) done() bool {
	return r.pos >= len(r.buf)
}

func (r *pbfReader) varint() (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		if r.pos >= len(r.buf) {
			return 0, fmt.Errorf("truncated varint: %w", ErrCorruptPayload)
		}
		b := r.buf[r.pos]
		r.pos++
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("varint overflow: %w", ErrCorruptPayload)
}

func (r *pbfReader) tag() (int, int, error) {
	v, err := r.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

func (r *pbfReader) bytes() ([]byte, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, fmt.Errorf("truncated field of %d bytes: %w", n, ErrCorruptPayload)
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *pbfReader) fixed32() (uint32, error) {
	if len(r.buf)-r.pos < 4 {
		return 0, fmt.Errorf("truncated fixed32: %w", ErrCorruptPayload)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *pbfReader) fixed64() (uint64, error) {
	if len(r.buf)-r.pos < 8 {
		return 0, fmt.Errorf("truncated fixed64: %w", ErrCorruptPayload)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *pbfReader) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := r.varint()
		return err
	case wireFixed64:
		_, err := r.fixed64()
		return err
	case wireBytes:
		_, err := r.bytes()
		return err
	case wireFixed32:
		_, err := r.fixed32()
		return err
	}
	return fmt.Errorf("unknown wire type %d: %w", wire, ErrCorruptPayload)
}

func (r *pbfReader) packedUint32() ([]uint32, error) {
	data, err := r.bytes()
	if err != nil {
		return nil, err
	}
	pr := pbfReader{buf: data}
	var out []uint32
	for !pr.done() {
		v, err := pr.varint()
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

//decodeTile 解码未压缩的MVT数据
func decodeTile(data []byte) (*MVTTile, error) {
	r := pbfReader{buf: data}
	tile := &MVTTile{}
	names := make(map[string]bool)
	for !r.done() {
		field, wire, err := r.tag()
		if err != nil {
			return nil, err
		}
		if field == tileLayersField && wire == wireBytes {
			raw, err := r.bytes()
			if err != nil {
				return nil, err
			}
			layer, err := decodeLayer(raw)
			if err != nil {
				return nil, err
			}
			if names[layer.Name] {
				return nil, fmt.Errorf("duplicate layer %q: %w", layer.Name, ErrCorruptPayload)
			}
			names[layer.Name] = true
			tile.Layers = append(tile.Layers, layer)
		} else if err := r.skip(wire); err != nil {
			return nil, err
		}
	}
	return tile, nil
}

func decodeLayer(data []byte) (MVTLayer, error) {
	layer := MVTLayer{Version: 1, Extent: DefaultExtent}
	r := pbfReader{buf: data}
	for !r.done() {
		field, wire, err := r.tag()
		if err != nil {
			return layer, err
		}
		switch {
		case field == layerNameField && wire == wireBytes:
			raw, err := r.bytes()
			if err != nil {
				return layer, err
			}
			layer.Name = string(raw)
		case field == layerFeaturesField && wire == wireBytes:
			raw, err := r.bytes()
			if err != nil {
				return layer, err
			}
			f, err := decodeFeature(raw)
			if err != nil {
				return layer, err
			}
			layer.Features = append(layer.Features, f)
		case field == layerKeysField && wire == wireBytes:
			raw, err := r.bytes()
			if err != nil {
				return layer, err
			}
			layer.Keys = append(layer.Keys, string(raw))
		case field == layerValuesField && wire == wireBytes:
			raw, err := r.bytes()
			if err != nil {
				return layer, err
			}
			v, err := decodeValue(raw)
			if err != nil {
				return layer, err
			}
			layer.Values = append(layer.Values, v)
		case field == layerExtentField && wire == wireVarint:
			v, err := r.varint()
			if err != nil {
				return layer, err
			}
			layer.Extent = int64(v)
		case field == layerVersionField && wire == wireVarint:
			v, err := r.varint()
			if err != nil {
				return layer, err
			}
			layer.Version = int(v)
		default:
			if err := r.skip(wire); err != nil {
				return layer, err
			}
		}
	}
	// 属性引用必须落在键值池范围内
	for _, f := range layer.Features {
		if len(f.Tags)%2 != 0 {
			return layer, fmt.Errorf("layer %q: odd tag count: %w", layer.Name, ErrCorruptPayload)
		}
		for i := 0; i+1 < len(f.Tags); i += 2 {
			if int(f.Tags[i]) >= len(layer.Keys) || int(f.Tags[i+1]) >= len(layer.Values) {
				return layer, fmt.Errorf("layer %q: tag reference out of pool bounds: %w", layer.Name, ErrCorruptPayload)
			}
		}
	}
	return layer, nil
}

func decodeFeature(data []byte) (MVTFeature, error) {
	var f MVTFeature
	r := pbfReader{buf: data}
	for !r.done() {
		field, wire, err := r.tag()
		if err != nil {
			return f, err
		}
		switch {
		case field == featureIDField && wire == wireVarint:
			v, err := r.varint()
			if err != nil {
				return f, err
			}
			f.ID = v
			f.HasID = true
		case field == featureTagsField && wire == wireBytes:
			tags, err := r.packedUint32()
			if err != nil {
				return f, err
			}
			f.Tags = append(f.Tags, tags...)
		case field == featureTypeField && wire == wireVarint:
			v, err := r.varint()
			if err != nil {
				return f, err
			}
			f.Type = mvtGeometryType(v)
		case field == featureGeometryField && wire == wireBytes:
			geom, err := r.packedUint32()
			if err != nil {
				return f, err
			}
			f.Geometry = append(f.Geometry, geom...)
		default:
			if err := r.skip(wire); err != nil {
				return f, err
			}
		}
	}
	if f.Type != mvtUnknown {
		if _, err := parseGeometry(f.Type, f.Geometry); err != nil {
			return f, err
		}
	}
	return f, nil
}

func decodeValue(data []byte) (MVTValue, error) {
	v := MVTValue{Type: mvtString}
	r := pbfReader{buf: data}
	for !r.done() {
		field, wire, err := r.tag()
		if err != nil {
			return v, err
		}
		switch {
		case field == valueStringField && wire == wireBytes:
			raw, err := r.bytes()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtString, S: string(raw)}
		case field == valueFloatField && wire == wireFixed32:
			bits, err := r.fixed32()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtFloat, F: float64(math.Float32frombits(bits))}
		case field == valueDoubleField && wire == wireFixed64:
			bits, err := r.fixed64()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtDouble, F: math.Float64frombits(bits)}
		case field == valueIntField && wire == wireVarint:
			u, err := r.varint()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtInt, I: int64(u)}
		case field == valueUintField && wire == wireVarint:
			u, err := r.varint()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtUint, U: u}
		case field == valueSintField && wire == wireVarint:
			u, err := r.varint()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtSint, I: int64(u>>1) ^ -int64(u&1)}
		case field == valueBoolField && wire == wireVarint:
			u, err := r.varint()
			if err != nil {
				return v, err
			}
			v = MVTValue{Type: mvtBool, B: u != 0}
		default:
			if err := r.skip(wire); err != nil {
				return v, err
			}
		}
	}
	return v, nil
}

func appendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func appendTag(b []byte, field, wire int) []byte {
	return appendVarint(b, uint64(field)<<3|uint64(wire))
}

func appendBytesField(b []byte, field int, data []byte) []byte {
	b = appendTag(b, field, wireBytes)
	b = appendVarint(b, uint64(len(data)))
	return append(b, data...)
}

func appendVarintField(b []byte, field int, v uint64) []byte {
	b = appendTag(b, field, wireVarint)
	return appendVarint(b, v)
}

func appendPackedUint32(b []byte, field int, vals []uint32) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarint(packed, uint64(v))
	}
	return appendBytesField(b, field, packed)
}

//encodeTile 编码为未压缩的MVT数据，同一瓦片两次编码字节一致
func encodeTile(tile *MVTTile) []byte {
	var b []byte
	for i := range tile.Layers {
		b = appendBytesField(b, tileLayersField, encodeLayer(&tile.Layers[i]))
	}
	return b
}

func encodeLayer(layer *MVTLayer) []byte {
	var b []byte
	b = appendBytesField(b, layerNameField, []byte(layer.Name))
	for i := range layer.Features {
		b = appendBytesField(b, layerFeaturesField, encodeFeature(&layer.Features[i]))
	}
	for _, k := range layer.Keys {
		b = appendBytesField(b, layerKeysField, []byte(k))
	}
	for _, v := range layer.Values {
		b = appendBytesField(b, layerValuesField, encodeValue(v))
	}
	b = appendVarintField(b, layerExtentField, uint64(layer.Extent))
	b = appendVarintField(b, layerVersionField, uint64(layer.Version))
	return b
}

func encodeFeature(f *MVTFeature) []byte {
	var b []byte
	if f.HasID {
		b = appendVarintField(b, featureIDField, f.ID)
	}
	if len(f.Tags) > 0 {
		b = appendPackedUint32(b, featureTagsField, f.Tags)
	}
	b = appendVarintField(b, featureTypeField, uint64(f.Type))
	if len(f.Geometry) > 0 {
		b = appendPackedUint32(b, featureGeometryField, f.Geometry)
	}
	return b
}

func encodeValue(v MVTValue) []byte {
	var b []byte
	switch v.Type {
	case mvtString:
		b = appendBytesField(b, valueStringField, []byte(v.S))
	case mvtFloat:
		b = appendTag(b, valueFloatField, wireFixed32)
		bits := math.Float32bits(float32(v.F))
		b = append(b, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	case mvtDouble:
		b = appendTag(b, valueDoubleField, wireFixed64)
		bits := math.Float64bits(v.F)
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], bits)
		b = append(b, raw[:]...)
	case mvtInt:
		b = appendVarintField(b, valueIntField, uint64(v.I))
	case mvtUint:
		b = appendVarintField(b, valueUintField, v.U)
	case mvtSint:
		b = appendVarintField(b, valueSintField, uint64((v.I<<1)^(v.I>>63)))
	case mvtBool:
		var u uint64
		if v.B {
			u = 1
		}
		b = appendVarintField(b, valueBoolField, u)
	}
	return b
}

//compressTile 按配置的压缩方案压缩瓦片数据
func compressTile(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case GZIP:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case ZLIB:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case NONE, "":
		return data, nil
	}
	return nil, fmt.Errorf("unknown compression scheme %q", scheme)
}

//decompressTile 解压瓦片数据，失败区别于结构损坏单独上报
func decompressTile(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case GZIP:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %v: %w", err, ErrCompression)
		}
		out, err := ioutil.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %v: %w", err, ErrCompression)
		}
		return out, nil
	case ZLIB:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib: %v: %w", err, ErrCompression)
		}
		out, err := ioutil.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("zlib: %v: %w", err, ErrCompression)
		}
		return out, nil
	case NONE, "":
		return data, nil
	}
	return nil, fmt.Errorf("unknown compression scheme %q", scheme)
}
