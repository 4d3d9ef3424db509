package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // import sqlite3 driver

	"github.com/paulmach/orb/maptile"
)

//TileStore 瓦片存储接口，核心几何处理只依赖该接口
type TileStore interface {
	//GetTile 读取瓦片，缺失时返回(nil, nil)
	GetTile(t maptile.Tile) ([]byte, error)
	PutTile(tile Tile) error
	Metadata() (map[string]string, error)
	PutMetadata(meta map[string]string) error
}

//TileIterator 按级别遍历存储
type TileIterator interface {
	Zooms() ([]maptile.Zoom, error)
	CountTiles(zoom maptile.Zoom) (int64, error)
	Tiles(zoom maptile.Zoom, out chan<- Tile) error
}

//TileArchive 可遍历的瓦片存储
type TileArchive interface {
	TileStore
	TileIterator
}

//SchemeTMS mbtiles默认行号原点（左下）
const SchemeTMS = "tms"

//SchemeXYZ 行号原点在左上
const SchemeXYZ = "xyz"

//MBTiles mbtiles瓦片档案
// 行号方向是档案级显式配置，只在存储边界换算，内部一律xyz
type MBTiles struct {
	db       *sql.DB
	pathname string
	scheme   string
}

//OpenMBTiles 打开已有档案
func OpenMBTiles(path string, scheme string) (*MBTiles, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("mbtiles file(%s) not exist", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &MBTiles{db: db, pathname: path, scheme: scheme}, nil
}

//CreateMBTiles 新建档案并初始化表结构
func CreateMBTiles(path string, scheme string) (*MBTiles, error) {
	os.Remove(path)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = optimizeConnection(db)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec("create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec("create table if not exists metadata (name text, value text);")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec("create unique index name on metadata (name);")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec("create unique index tile_index on tiles(zoom_level, tile_column, tile_row);")
	if err != nil {
		return nil, err
	}

	return &MBTiles{db: db, pathname: path, scheme: scheme}, nil
}

//Close 关闭档案
func (m *MBTiles) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

//storeRow 写入时的行号换算
func (m *MBTiles) storeRow(t maptile.Tile) uint32 {
	if m.scheme == SchemeXYZ {
		return t.Y
	}
	return flipRow(t)
}

//loadRow 读出时的行号换算
func (m *MBTiles) loadRow(zoom maptile.Zoom, row uint32) uint32 {
	if m.scheme == SchemeXYZ {
		return row
	}
	return uint32(1)<<uint32(zoom) - 1 - row
}

//GetTile 读取瓦片
func (m *MBTiles) GetTile(t maptile.Tile) ([]byte, error) {
	var data []byte
	err := m.db.QueryRow("select tile_data from tiles where zoom_level = ? and tile_column = ? and tile_row = ?",
		t.Z, t.X, m.storeRow(t)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

//PutTile 保存瓦片
func (m *MBTiles) PutTile(tile Tile) error {
	_, err := m.db.Exec("insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);",
		tile.T.Z, tile.T.X, m.storeRow(tile.T), tile.C)
	return err
}

//Metadata 读取元数据表
func (m *MBTiles) Metadata() (map[string]string, error) {
	rows, err := m.db.Query("select name, value from metadata;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

//PutMetadata 写入元数据，同名覆盖
func (m *MBTiles) PutMetadata(meta map[string]string) error {
	for name, value := range meta {
		_, err := m.db.Exec("insert or replace into metadata (name, value) values (?, ?)", name, value)
		if err != nil {
			return err
		}
	}
	return nil
}

//Zooms 档案中存在的级别
func (m *MBTiles) Zooms() ([]maptile.Zoom, error) {
	rows, err := m.db.Query("select distinct zoom_level from tiles order by zoom_level asc;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var zooms []maptile.Zoom
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, err
		}
		zooms = append(zooms, maptile.Zoom(z))
	}
	return zooms, rows.Err()
}

//CountTiles 级别内瓦片数
func (m *MBTiles) CountTiles(zoom maptile.Zoom) (int64, error) {
	var count int64
	err := m.db.QueryRow("select count(*) from tiles where zoom_level = ?", zoom).Scan(&count)
	return count, err
}

//Tiles 遍历级别内全部瓦片，依次写入out
func (m *MBTiles) Tiles(zoom maptile.Zoom, out chan<- Tile) error {
	rows, err := m.db.Query("select tile_column, tile_row, tile_data from tiles where zoom_level = ?", zoom)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var col, row uint32
		var data []byte
		if err := rows.Scan(&col, &row, &data); err != nil {
			return err
		}
		out <- Tile{T: maptile.New(col, m.loadRow(zoom, row), zoom), C: data}
	}
	return rows.Err()
}

func optimizeConnection(db *sql.DB) error {
	_, err := db.Exec("PRAGMA synchronous=0")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA locking_mode=EXCLUSIVE")
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA journal_mode=DELETE")
	if err != nil {
		return err
	}
	return nil
}

func optimizeDatabase(db *sql.DB) error {
	_, err := db.Exec("ANALYZE;")
	if err != nil {
		return err
	}

	_, err = db.Exec("VACUUM;")
	if err != nil {
		return err
	}

	return nil
}
