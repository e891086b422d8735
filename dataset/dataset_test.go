package dataset

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-dsdl/annotation"
)

const fakeBackend = "fake-test"

// fakeSamples holds the samples the fake backend yields per description file
var fakeSamples = map[string][]*annotation.Sample{}

// fakeOpened records the config each fake reader was opened with
var fakeOpened []annotation.Config

type fakeReader struct {
	samples []*annotation.Sample
	pos     int
	current *annotation.Sample
}

func (r *fakeReader) Scan() bool {
	if r.pos >= len(r.samples) {
		r.current = nil
		return false
	}

	r.current = r.samples[r.pos]
	r.pos++
	return true
}

func (r *fakeReader) Sample() *annotation.Sample { return r.current }
func (r *fakeReader) Err() error                 { return nil }
func (r *fakeReader) ClassNames() []string       { return nil }
func (r *fakeReader) Close() error               { return nil }

func (r *fakeReader) Meta() map[string]string {
	return map[string]string{"dataset_name": "fake"}
}

func init() {
	annotation.Register(fakeBackend, func(cfg annotation.Config) (annotation.Reader, error) {
		fakeOpened = append(fakeOpened, cfg)
		samples, ok := fakeSamples[cfg.DescriptionFile]

		if !ok {
			return nil, errors.New("no such description")
		}

		return &fakeReader{samples: samples}, nil
	})
}

func intPtr(v int) *int {
	return &v
}

// sample returns a 100x80 sample holding one polygon instance per label
func sample(location string, labels ...string) *annotation.Sample {

	s := &annotation.Sample{
		Image:          &annotation.ImageRef{Location: location},
		Shape:          &annotation.ImageShape{Width: 100, Height: 80},
		HasRotatedBBox: true,
	}

	for _, lbl := range labels {
		s.Instances = append(s.Instances, annotation.Instance{
			BBox: &annotation.RBBox{
				Polygon: [][2]float64{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
			},
			Label: &annotation.Label{CategoryName: lbl},
		})
	}

	return s
}

func newFake(t *testing.T, cfg Config, samples ...*annotation.Sample) (*Dataset, error) {
	t.Helper()

	fakeSamples[t.Name()] = samples
	cfg.Backend = fakeBackend
	cfg.AnnFile = t.Name()

	return New(cfg, WithFs(afero.NewMemMapFs()))
}

func mustList(t *testing.T, d *Dataset) []DataInfo {
	t.Helper()

	list, err := d.DataList()
	require.NoError(t, err)
	return list
}

func TestLabelNarrowing(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A", "B", "C"}},
		sample("a.png", "A", "B", "C"))
	require.NoError(t, err)

	list := mustList(t, d)
	require.Len(t, list, 1)

	// only the class at index 1 keeps its index
	assert.Equal(t, []int{0, 1, 0}, list[0].Labels())
}

func TestLabelIndexMapping(t *testing.T) {

	d, err := newFake(t, Config{
		Classes:      []string{"A", "B", "C"},
		LabelMapping: LabelIndex,
	}, sample("a.png", "A", "B", "C"))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, mustList(t, d)[0].Labels())
}

func TestDefaultClassesAreDOTA(t *testing.T) {

	d, err := newFake(t, Config{}, sample("a.png", "plane", "baseball_diamond", "ship"))
	require.NoError(t, err)

	assert.Equal(t, DOTAv1Classes(), d.Classes())
	assert.Equal(t, DOTAv1Classes(), d.Metainfo().Classes)
	assert.Equal(t, "fake", d.Metainfo().Meta["dataset_name"])
	assert.Equal(t, []int{0, 1, 0}, mustList(t, d)[0].Labels())
}

func TestUnknownCategory(t *testing.T) {

	_, err := newFake(t, Config{Classes: []string{"A", "B"}},
		sample("a.png", "A"),
		sample("b.png", "B", "Z"))
	require.Error(t, err)

	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Z", unknown.Category)
	assert.Equal(t, 1, unknown.ImgID)
}

func TestMissingLabel(t *testing.T) {

	s := sample("a.png", "A")
	s.Instances[0].Label = nil

	_, err := newFake(t, Config{Classes: []string{"A"}}, s)
	assert.Error(t, err)
}

func TestEmptyRecordsDropped(t *testing.T) {

	noBoxes := sample("b.png")
	noBoxes.HasRotatedBBox = false

	// instances are only read when the rotated box field is present
	unread := sample("d.png", "A")
	unread.HasRotatedBBox = false

	d, err := newFake(t, Config{Classes: []string{"A", "B"}},
		sample("a.png", "A"),
		noBoxes,
		sample("c.png"),
		unread,
		sample("e.png", "B"),
	)
	require.NoError(t, err)

	list := mustList(t, d)
	require.Len(t, list, 2)

	// image ids keep the position in the annotation iteration
	assert.Equal(t, 0, list[0].ImgID)
	assert.Equal(t, 4, list[1].ImgID)

	for _, info := range list {
		assert.NotEmpty(t, info.Instances)
	}
}

func TestImagePath(t *testing.T) {

	d, err := newFake(t, Config{
		Classes:    []string{"A"},
		DataPrefix: map[string]string{"img_path": "images"},
	}, sample("a/b.jpg", "A"), sample("/abs/c.jpg", "A"))
	require.NoError(t, err)

	list := mustList(t, d)
	assert.Equal(t, "images/a/b.jpg", list[0].ImgPath)
	assert.Equal(t, "/abs/c.jpg", list[1].ImgPath)
}

func TestDataRootJoined(t *testing.T) {

	fakeSamples["/data/DOTA/"+t.Name()] = []*annotation.Sample{sample("a/b.jpg", "A")}
	fakeOpened = nil

	d, err := New(Config{
		Backend:    fakeBackend,
		DataRoot:   "/data/DOTA",
		AnnFile:    t.Name(),
		DataPrefix: map[string]string{"img_path": "images"},
		Classes:    []string{"A"},
	}, WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)

	assert.Equal(t, "/data/DOTA/images/a/b.jpg", mustList(t, d)[0].ImgPath)

	require.Len(t, fakeOpened, 1)
	assert.Equal(t, "/data/DOTA/"+t.Name(), fakeOpened[0].DescriptionFile)
	assert.Equal(t, "/data/DOTA/images", fakeOpened[0].MediaDir)
	assert.Equal(t, annotation.RequiredFields, fakeOpened[0].RequiredFields)
}

func TestInstanceGeometry(t *testing.T) {

	s := sample("a.png", "A", "A", "A")
	// rotated rectangle converted to corners
	s.Instances[1].BBox = &annotation.RBBox{RBox: []float64{10, 10, 4, 2, 0}}
	// neither representation, instance carries no bbox
	s.Instances[2].BBox = &annotation.RBBox{}

	d, err := newFake(t, Config{Classes: []string{"A"}}, s)
	require.NoError(t, err)

	insts := mustList(t, d)[0].Instances
	require.Len(t, insts, 3)

	assert.Equal(t, []float64{0, 0, 4, 0, 4, 4, 0, 4}, insts[0].BBox)
	assert.InDeltaSlice(t, []float64{8, 11, 8, 9, 12, 9, 12, 11}, insts[1].BBox, 1e-9)
	assert.Nil(t, insts[2].BBox)

	_, hasBBox := insts[2].Map()["bbox"]
	assert.False(t, hasBBox)
}

func TestIgnoreFlagAndExtras(t *testing.T) {

	s := sample("a.png", "A", "A")
	s.HasIgnoreFlag = true
	s.Instances[0].IgnoreFlag = intPtr(1)
	s.Instances[0].Extra = map[string]interface{}{"difficult": 2.0, "unused": "x"}
	s.Instances[1].Extra = map[string]interface{}{"difficult": 0.0}

	d, err := newFake(t, Config{
		Classes: []string{"A"},
		SpecificKeyPath: map[string]string{
			"difficult": "./annotations/*/difficult",
			"Label":     "./annotations/*/name",
		},
	}, s)
	require.NoError(t, err)

	insts := mustList(t, d)[0].Instances
	assert.Equal(t, 1, insts[0].IgnoreFlag)
	assert.Equal(t, 0, insts[1].IgnoreFlag)

	// only requested fields that are not required fields are copied
	assert.Equal(t, map[string]interface{}{"difficult": 2.0}, insts[0].Extra)
	assert.Equal(t, map[string]interface{}{"difficult": 0.0}, insts[1].Extra)
}

func TestFilterAppliedOnInit(t *testing.T) {

	small := sample("small.png", "A")
	small.Shape = &annotation.ImageShape{Width: 20, Height: 100}

	d, err := newFake(t, Config{
		Classes:   []string{"A"},
		FilterCfg: &FilterConfig{FilterEmptyGT: true, MinSize: 32},
	}, sample("a.png", "A"), small)
	require.NoError(t, err)

	assert.Equal(t, 1, d.Len())
	assert.Equal(t, "a.png", mustList(t, d)[0].ImgPath)

	testMode, err := newFake(t, Config{
		Classes:   []string{"A"},
		FilterCfg: &FilterConfig{FilterEmptyGT: true, MinSize: 32},
		TestMode:  true,
	}, sample("a.png", "A"), small)
	require.NoError(t, err)
	assert.Equal(t, 2, testMode.Len())
}

func TestLazyInit(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A"}, LazyInit: true},
		sample("a.png", "A"), sample("b.png", "A"))
	require.NoError(t, err)

	// Len loads the data list of a lazy dataset
	require.Equal(t, 2, d.Len())

	var paths []string

	for i := 0; i < d.Len(); i++ {
		info, err := d.Get(i)
		require.NoError(t, err)
		paths = append(paths, info.ImgPath)
	}

	assert.Equal(t, []string{"a.png", "b.png"}, paths)

	// initialization only happens once
	require.NoError(t, d.FullInit())
	assert.Equal(t, 2, d.Len())
}

func TestLazyInitError(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A"}, LazyInit: true},
		sample("a.png", "Z"))
	require.NoError(t, err)

	assert.Equal(t, 0, d.Len())

	var catErr *UnknownCategoryError
	assert.True(t, errors.As(d.FullInit(), &catErr))
}

func TestAccessorsReturnCopies(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A", "B"}},
		sample("a.png", "A", "B"))
	require.NoError(t, err)

	list, err := d.DataList()
	require.NoError(t, err)
	list[0].ImgPath = "changed.png"
	list[0].Instances[0].BBoxLabel = 7

	classes := d.Classes()
	classes[0] = "changed"

	meta := d.Metainfo()
	meta.Classes[1] = "changed"

	info, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "a.png", info.ImgPath)
	assert.Equal(t, 0, info.Instances[0].BBoxLabel)
	assert.Equal(t, []string{"A", "B"}, d.Classes())
	assert.Equal(t, []string{"A", "B"}, d.Metainfo().Classes)
}

func TestGetAndCatIDs(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A", "B"}},
		sample("a.png", "A", "B", "B"))
	require.NoError(t, err)

	ids, err := d.CatIDs(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, ids)

	// returned records are copies
	info, err := d.Get(0)
	require.NoError(t, err)
	info.Instances[0].BBox[0] = 99

	again, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Instances[0].BBox[0])

	_, err = d.Get(1)
	var idxErr *IndexError
	require.True(t, errors.As(err, &idxErr))
	assert.Equal(t, 1, idxErr.Len)

	_, err = d.CatIDs(-1)
	assert.Error(t, err)
}

func TestReloadDataList(t *testing.T) {

	d, err := newFake(t, Config{Classes: []string{"A"}}, sample("a.png", "A"))
	require.NoError(t, err)

	// the construction reader has been consumed, a new one is opened
	list, err := d.LoadDataList()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMissingBackend(t *testing.T) {

	fs := afero.NewMemMapFs()

	_, err := New(Config{
		Backend:     "dsdl-not-linked",
		AnnFile:     "train.yaml",
		ClassesFile: "missing.txt",
	}, WithFs(fs))
	require.Error(t, err)

	// reported before the missing classes file is ever read
	var unavailable *annotation.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "dsdl-not-linked", unavailable.Backend)
}

func TestInvalidConfig(t *testing.T) {

	_, err := New(Config{
		LabelMapping: "ordinal",
		Classes:      []string{"A"},
		ClassesFile:  "classes.txt",
	})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "ann_file is required")
	assert.Contains(t, err.Error(), `unknown label_mapping "ordinal"`)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestClassesFile(t *testing.T) {

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/classes.txt",
		[]byte("plane\n ship \n\nharbor\n"), 0644))

	fakeSamples[t.Name()] = []*annotation.Sample{sample("a.png", "ship")}

	d, err := New(Config{
		Backend:     fakeBackend,
		DataRoot:    "/data",
		AnnFile:     t.Name(),
		ClassesFile: "classes.txt",
	}, WithFs(fs))

	// ann file is joined to the data root
	require.Error(t, err)

	fakeSamples["/data/"+t.Name()] = fakeSamples[t.Name()]

	d, err = New(Config{
		Backend:     fakeBackend,
		DataRoot:    "/data",
		AnnFile:     t.Name(),
		ClassesFile: "classes.txt",
	}, WithFs(fs))
	require.NoError(t, err)

	assert.Equal(t, []string{"plane", "ship", "harbor"}, d.Classes())
	assert.Equal(t, []int{1}, mustList(t, d)[0].Labels())
}

func TestDataInfoJSON(t *testing.T) {

	info := DataInfo{
		ImgID:   3,
		ImgPath: "images/a.png",
		Width:   100,
		Height:  80,
		Instances: []Instance{
			{BBox: []float64{0, 0, 4, 0, 4, 4, 0, 4}, BBoxLabel: 1, Extra: map[string]interface{}{"difficult": 1}},
			{BBoxLabel: 0, IgnoreFlag: 1},
		},
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"img_id": 3, "img_path": "images/a.png", "width": 100, "height": 80,
		"instances": [
			{"bbox": [0, 0, 4, 0, 4, 4, 0, 4], "bbox_label": 1, "ignore_flag": 0, "difficult": 1},
			{"bbox_label": 0, "ignore_flag": 1}
		]}`, string(data))

	m := info.Map()
	assert.Equal(t, 3, m["img_id"])
	assert.Len(t, m["instances"], 2)
}
