package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineclip(t *testing.T) {
	got := lineclip([]point{
		{-10, 10}, {10, 10}, {10, -10}, {20, -10}, {20, 10}, {40, 10},
		{40, 20}, {20, 20}, {20, 40}, {10, 40}, {10, 20}, {5, 20}, {-10, 20},
	}, bbox{0, 0, 30, 30})

	assert.Equal(t, [][]point{
		{{0, 10}, {10, 10}, {10, 0}},
		{{20, 0}, {20, 10}, {30, 10}},
		{{30, 20}, {20, 20}, {20, 30}},
		{{10, 30}, {10, 20}, {5, 20}, {0, 20}},
	}, got)
}

func TestLineclipSinglePiece(t *testing.T) {
	got := lineclip([]point{{10, -10}, {5, 5}, {10, 10}}, bbox{3, 3, 6, 6})
	assert.Equal(t, [][]point{{{6, 3}, {5, 5}, {6, 6}}}, got)
}

func TestLineclipFullyOutside(t *testing.T) {
	got := lineclip([]point{{40, 40}, {50, 50}}, bbox{0, 0, 30, 30})
	assert.Empty(t, got)
}

func TestPolygonclip(t *testing.T) {
	got := polygonclip([]point{
		{-10, 10}, {0, 10}, {10, 10}, {10, 5}, {10, -5}, {10, -10},
		{20, -10}, {20, 10}, {40, 10}, {40, 20}, {20, 20}, {20, 40},
		{10, 40}, {10, 20}, {5, 20}, {-10, 20},
	}, bbox{0, 0, 30, 30})

	assert.Equal(t, []point{
		{0, 10}, {0, 10}, {10, 10}, {10, 5}, {10, 0}, {20, 0}, {20, 10},
		{30, 10}, {30, 20}, {20, 20}, {20, 30}, {10, 30}, {10, 20}, {5, 20}, {0, 20},
	}, got)
}

func TestPolygonclipFullyOutside(t *testing.T) {
	got := polygonclip([]point{{40, 40}, {50, 40}, {50, 50}}, bbox{0, 0, 30, 30})
	assert.Empty(t, got)
}

func TestRingArea2(t *testing.T) {
	// 顺时针（屏幕坐标系外环）为正
	assert.Equal(t, int64(200), ringArea2([]point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}))
	assert.Equal(t, int64(-200), ringArea2([]point{{0, 0}, {0, 10}, {10, 10}, {10, 0}}))
	assert.Equal(t, int64(0), ringArea2([]point{{0, 0}, {5, 5}, {10, 10}}))
}
