package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func info(id, width, height, instances int) DataInfo {
	return DataInfo{
		ImgID:     id,
		Width:     width,
		Height:    height,
		Instances: make([]Instance, instances),
	}
}

func ids(list []DataInfo) []int {
	out := make([]int, len(list))

	for i, d := range list {
		out[i] = d.ImgID
	}

	return out
}

func TestFilterDataList(t *testing.T) {

	list := []DataInfo{
		info(0, 20, 100, 1), // shorter side below min size
		info(1, 40, 40, 1),
		info(2, 640, 480, 0), // no instances
		info(3, 10, 10, 0),   // empty and undersized
		info(4, 32, 500, 2),  // exactly min size
	}

	tests := []struct {
		name     string
		cfg      *FilterConfig
		testMode bool
		expected []int
	}{
		{"nil config keeps everything", nil, false, []int{0, 1, 2, 3, 4}},
		{"zero config keeps everything", &FilterConfig{}, false, []int{0, 1, 2, 3, 4}},
		{"min size", &FilterConfig{MinSize: 32}, false, []int{1, 2, 4}},
		{"empty gt", &FilterConfig{FilterEmptyGT: true}, false, []int{0, 1, 4}},
		{"empty gt and min size", &FilterConfig{FilterEmptyGT: true, MinSize: 32}, false, []int{1, 4}},
		{"test mode", &FilterConfig{FilterEmptyGT: true, MinSize: 32}, true, []int{0, 1, 2, 3, 4}},
		{"negative min size is permissive", &FilterConfig{MinSize: -1}, false, []int{0, 1, 2, 3, 4}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterDataList(list, tc.cfg, tc.testMode)
			assert.Equal(t, tc.expected, ids(got))
		})
	}
}

func TestFilterDataListIdempotent(t *testing.T) {

	list := []DataInfo{
		info(0, 20, 100, 1),
		info(1, 40, 40, 0),
		info(2, 64, 64, 3),
		info(3, 100, 31, 1),
		info(4, 800, 600, 2),
	}

	cfgs := []*FilterConfig{
		nil,
		{MinSize: 32},
		{FilterEmptyGT: true},
		{FilterEmptyGT: true, MinSize: 64},
	}

	for _, cfg := range cfgs {
		once := FilterDataList(list, cfg, false)
		twice := FilterDataList(once, cfg, false)
		assert.Equal(t, once, twice)
	}
}

func TestFilterDataListTestModeIdentity(t *testing.T) {

	list := []DataInfo{info(0, 1, 1, 0), info(1, 2, 2, 0)}

	got := FilterDataList(list, &FilterConfig{FilterEmptyGT: true, MinSize: 1000}, true)
	assert.Equal(t, list, got)

	assert.Empty(t, FilterDataList(nil, &FilterConfig{MinSize: 1}, false))
}
