package main

type mvtOperation uint32

const (
	mvtMoveto    mvtOperation = 1
	mvtLineto    mvtOperation = 2
	mvtClosepath mvtOperation = 7
)

const (
	mvtString = iota
	mvtFloat
	mvtDouble
	mvtInt
	mvtUint
	mvtSint
	mvtBool
)

type mvtGeometryType uint8

const (
	mvtUnknown    mvtGeometryType = 0
	mvtPoint      mvtGeometryType = 1
	mvtLinestring mvtGeometryType = 2
	mvtPolygon    mvtGeometryType = 3
)

//MVTValue 属性值，Type决定哪个字段有效
type MVTValue struct {
	Type int
	S    string
	F    float64
	I    int64
	U    uint64
	B    bool
}

//MVTFeature 瓦片要素
// Geometry保持MVT指令流原样（zigzag增量编码）
type MVTFeature struct {
	ID       uint64
	HasID    bool
	Type     mvtGeometryType
	Tags     []uint32
	Geometry []uint32
}

//MVTLayer 瓦片图层，键值池按图层去重
type MVTLayer struct {
	Version  int
	Name     string
	Extent   int64
	Features []MVTFeature
	Keys     []string
	Values   []MVTValue
	Keymap   map[string]int
	Valuemap map[MVTValue]int
}

//MVTTile 瓦片，图层保持插入顺序
type MVTTile struct {
	Layers []MVTLayer
}

//keyIndex 键池索引，不存在则追加
func (l *MVTLayer) keyIndex(key string) uint32 {
	if l.Keymap == nil {
		l.Keymap = make(map[string]int)
		for i, k := range l.Keys {
			l.Keymap[k] = i
		}
	}
	if i, ok := l.Keymap[key]; ok {
		return uint32(i)
	}
	l.Keymap[key] = len(l.Keys)
	l.Keys = append(l.Keys, key)
	return uint32(len(l.Keys) - 1)
}

//valueIndex 值池索引，不存在则追加
func (l *MVTLayer) valueIndex(val MVTValue) uint32 {
	if l.Valuemap == nil {
		l.Valuemap = make(map[MVTValue]int)
		for i, v := range l.Values {
			l.Valuemap[v] = i
		}
	}
	if i, ok := l.Valuemap[val]; ok {
		return uint32(i)
	}
	l.Valuemap[val] = len(l.Values)
	l.Values = append(l.Values, val)
	return uint32(len(l.Values) - 1)
}

//addTag 给要素追加一个属性
func (l *MVTLayer) addTag(f *MVTFeature, key string, val MVTValue) {
	f.Tags = append(f.Tags, l.keyIndex(key), l.valueIndex(val))
}

//featureProperty 按键名取要素属性值
func (l *MVTLayer) featureProperty(f *MVTFeature, key string) (MVTValue, bool) {
	for i := 0; i+1 < len(f.Tags); i += 2 {
		ki, vi := f.Tags[i], f.Tags[i+1]
		if int(ki) < len(l.Keys) && l.Keys[ki] == key && int(vi) < len(l.Values) {
			return l.Values[vi], true
		}
	}
	return MVTValue{}, false
}
