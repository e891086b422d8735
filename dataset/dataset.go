package dataset

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/swdee/go-dsdl/annotation"
	"go.uber.org/zap"
)

// UnknownCategoryError is returned when an instance is labelled with a
// category that is not in the class vocabulary
type UnknownCategoryError struct {
	Category string
	ImgID    int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("image %d: category %q is not in the class list",
		e.ImgID, e.Category)
}

// IndexError is returned when a record outside the data list is requested
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for data list of length %d",
		e.Index, e.Len)
}

// Option configures a Dataset
type Option func(*Dataset)

// WithFs sets the filesystem annotations and class files are read from,
// the OS filesystem is used by default
func WithFs(fs afero.Fs) Option {
	return func(d *Dataset) {
		d.fs = fs
	}
}

// WithLogger sets the logger, a no-op logger is used by default
func WithLogger(log *zap.Logger) Option {
	return func(d *Dataset) {
		d.log = log
	}
}

// Dataset builds the training data list of a rotated object detection
// dataset from an annotation reader and filters it
type Dataset struct {
	cfg        Config
	fs         afero.Fs
	log        *zap.Logger
	annFile    string
	dataPrefix map[string]string
	classes    []string
	classIdx   map[string]int
	// extraKeys are the requested fields copied onto instances as is
	extraKeys []string
	// reader is opened on construction and consumed by the first load
	reader   annotation.Reader
	metainfo Metainfo
	dataList []DataInfo
	fullInit bool
}

// New validates the config, checks its annotation backend is available,
// opens the annotation reader and unless LazyInit is set, loads and filters
// the data list
func New(cfg Config, opts ...Option) (*Dataset, error) {

	d := &Dataset{
		fs:  afero.NewOsFs(),
		log: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.log = d.log.Named("dataset")

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dataset config")
	}

	d.cfg = cfg.withDefaults()

	// fail before touching any data when the reader cannot exist
	if !annotation.Available(d.cfg.Backend) {
		return nil, &annotation.UnavailableError{Backend: d.cfg.Backend}
	}

	d.annFile = d.joinRoot(d.cfg.AnnFile)
	d.dataPrefix = make(map[string]string, len(d.cfg.DataPrefix))

	for k, prefix := range d.cfg.DataPrefix {
		d.dataPrefix[k] = d.joinRoot(prefix)
	}

	var err error

	switch {
	case len(d.cfg.Classes) > 0:
		d.classes = append([]string(nil), d.cfg.Classes...)

	case d.cfg.ClassesFile != "":
		d.classes, err = LoadClasses(d.fs, d.joinRoot(d.cfg.ClassesFile))

		if err != nil {
			return nil, err
		}

	default:
		d.classes = DOTAv1Classes()
	}

	d.classIdx = classIndex(d.classes)

	required := make(map[string]bool, len(annotation.RequiredFields))

	for _, field := range annotation.RequiredFields {
		required[field] = true
	}

	for key := range d.cfg.SpecificKeyPath {
		if !required[key] {
			d.extraKeys = append(d.extraKeys, key)
		}
	}

	sort.Strings(d.extraKeys)

	d.reader, err = d.openReader()

	if err != nil {
		return nil, err
	}

	d.metainfo = Metainfo{
		Classes: d.classes,
		Meta:    d.reader.Meta(),
	}

	if d.cfg.LazyInit {
		return d, nil
	}

	if err := d.FullInit(); err != nil {
		return nil, err
	}

	return d, nil
}

// joinRoot joins DataRoot to a relative path
func (d *Dataset) joinRoot(p string) string {

	if d.cfg.DataRoot == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(d.cfg.DataRoot, p)
}

// openReader opens the annotation reader over the dataset description
func (d *Dataset) openReader() (annotation.Reader, error) {

	r, err := annotation.Open(d.cfg.Backend, annotation.Config{
		DescriptionFile: d.annFile,
		Location: annotation.LocationConfig{
			Type: annotation.LocalFileReader,
		},
		RequiredFields:  annotation.RequiredFields,
		SpecificKeyPath: d.cfg.SpecificKeyPath,
		Transform:       d.cfg.PreTransform,
		MediaDir:        d.dataPrefix[imgPathKey],
		Fs:              d.fs,
		Logger:          d.log,
	})

	if err != nil {
		return nil, errors.Wrapf(err, "error opening annotations %s", d.annFile)
	}

	return r, nil
}

// FullInit loads the data list and filters it.  Calling it again after it
// succeeded does nothing.
func (d *Dataset) FullInit() error {

	if d.fullInit {
		return nil
	}

	list, err := d.LoadDataList()

	if err != nil {
		return err
	}

	d.dataList = list
	d.dataList = d.FilterData()
	d.fullInit = true

	return nil
}

// LoadDataList reads every annotation record and converts it into a training
// record.  Records without any instances are dropped.
func (d *Dataset) LoadDataList() ([]DataInfo, error) {

	r := d.reader
	d.reader = nil

	if r == nil {
		var err error

		if r, err = d.openReader(); err != nil {
			return nil, err
		}
	}

	defer r.Close()

	var list []DataInfo
	read := 0

	for ; r.Scan(); read++ {

		info, err := d.parseDataInfo(read, r.Sample())

		if err != nil {
			return nil, err
		}

		if len(info.Instances) == 0 {
			d.log.Debug("dropping image without instances",
				zap.Int("imgID", info.ImgID),
				zap.String("image", info.ImgPath),
			)
			continue
		}

		list = append(list, info)
	}

	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading annotations")
	}

	d.log.Info("loaded data list",
		zap.String("annFile", d.annFile),
		zap.Int("read", read),
		zap.Int("kept", len(list)),
		zap.Int("empty", read-len(list)),
	)

	return list, nil
}

// parseDataInfo converts the annotation record at position idx
func (d *Dataset) parseDataInfo(idx int, s *annotation.Sample) (DataInfo, error) {

	info := DataInfo{ImgID: idx}

	if s.Image == nil {
		return info, errors.Errorf("image %d has no %s field", idx,
			annotation.FieldImage)
	}

	if s.Shape == nil {
		return info, errors.Errorf("image %d has no %s field", idx,
			annotation.FieldImageShape)
	}

	info.ImgPath = joinLocation(d.dataPrefix[imgPathKey], s.Image.Location)
	info.Width = s.Shape.Width
	info.Height = s.Shape.Height
	info.Instances = []Instance{}

	if !s.HasRotatedBBox {
		return info, nil
	}

	for i, raw := range s.Instances {

		inst, err := d.parseInstance(idx, raw)

		if err != nil {
			return info, errors.Wrapf(err, "image %d instance %d", idx, i)
		}

		info.Instances = append(info.Instances, inst)
	}

	return info, nil
}

// parseInstance converts one annotated object
func (d *Dataset) parseInstance(imgID int, raw annotation.Instance) (Instance, error) {

	var inst Instance

	// prefer the explicit polygon, an instance with neither form carries no
	// bbox
	if corners, ok := raw.BBox.Corners(); ok {
		inst.BBox = annotation.FlattenPolygon(corners)
	}

	if raw.Label == nil {
		return inst, errors.Errorf("missing %s", annotation.FieldLabel)
	}

	label, err := d.bboxLabel(imgID, raw.Label.CategoryName)

	if err != nil {
		return inst, err
	}

	inst.BBoxLabel = label

	if raw.IgnoreFlag != nil {
		inst.IgnoreFlag = *raw.IgnoreFlag
	}

	for _, key := range d.extraKeys {
		if v, ok := raw.Extra[key]; ok {
			if inst.Extra == nil {
				inst.Extra = make(map[string]interface{}, len(d.extraKeys))
			}

			inst.Extra[key] = v
		}
	}

	return inst, nil
}

// bboxLabel looks up the training label of a category name
func (d *Dataset) bboxLabel(imgID int, category string) (int, error) {

	idx, ok := d.classIdx[category]

	if !ok {
		return 0, &UnknownCategoryError{Category: category, ImgID: imgID}
	}

	if d.cfg.LabelMapping == LabelIndex || idx == narrowClassIndex {
		return idx, nil
	}

	return 0, nil
}

// joinLocation joins an image location to the image prefix, absolute
// locations are returned unchanged
func joinLocation(prefix, location string) string {

	if filepath.IsAbs(location) {
		return location
	}

	return filepath.Join(prefix, location)
}

// FilterData filters the loaded data list according to the filter config
func (d *Dataset) FilterData() []DataInfo {

	valid := FilterDataList(d.dataList, d.cfg.FilterCfg, d.cfg.TestMode)

	if len(valid) != len(d.dataList) {
		d.log.Info("filtered data list",
			zap.Int("before", len(d.dataList)),
			zap.Int("after", len(valid)),
		)
	}

	return valid
}

// Len returns the number of records in the data list, loading it first if
// the dataset was lazily initialized.  A failed load is logged and reported
// as an empty data list, call FullInit to get the error.
func (d *Dataset) Len() int {

	if err := d.FullInit(); err != nil {
		d.log.Error("error initializing dataset", zap.Error(err))
		return 0
	}

	return len(d.dataList)
}

// DataList returns a copy of the data list, loading it first if the dataset
// was lazily initialized
func (d *Dataset) DataList() ([]DataInfo, error) {

	if err := d.FullInit(); err != nil {
		return nil, err
	}

	list := make([]DataInfo, len(d.dataList))

	for i, info := range d.dataList {
		list[i] = info.Clone()
	}

	return list, nil
}

// Get returns a copy of the record at idx
func (d *Dataset) Get(idx int) (DataInfo, error) {

	if err := d.FullInit(); err != nil {
		return DataInfo{}, err
	}

	if idx < 0 || idx >= len(d.dataList) {
		return DataInfo{}, &IndexError{Index: idx, Len: len(d.dataList)}
	}

	return d.dataList[idx].Clone(), nil
}

// CatIDs returns the labels of the instances of the record at idx
func (d *Dataset) CatIDs(idx int) ([]int, error) {

	info, err := d.Get(idx)

	if err != nil {
		return nil, err
	}

	return info.Labels(), nil
}

// Metainfo returns a copy of the class vocabulary and annotation metadata
func (d *Dataset) Metainfo() Metainfo {

	meta := make(map[string]string, len(d.metainfo.Meta))

	for k, v := range d.metainfo.Meta {
		meta[k] = v
	}

	return Metainfo{Classes: d.Classes(), Meta: meta}
}

// Classes returns a copy of the class vocabulary labels index into
func (d *Dataset) Classes() []string {
	return append([]string(nil), d.classes...)
}
