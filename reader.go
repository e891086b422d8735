package dsdl

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/swdee/go-dsdl/annotation"
	"go.uber.org/zap"
)

// BackendName is the name the reader is registered under with the
// annotation package
const BackendName = "dsdl"

func init() {
	annotation.Register(BackendName, func(cfg annotation.Config) (annotation.Reader, error) {
		return Open(cfg)
	})
}

// MisalignedFieldError is returned when per-instance fields of a sample do
// not select the same number of values
type MisalignedFieldError struct {
	Field    string
	Expected int
	Got      int
}

func (e *MisalignedFieldError) Error() string {
	return fmt.Sprintf("field %s is misaligned with %s: expected %d values, got %d",
		e.Field, annotation.FieldRotatedBBox, e.Expected, e.Got)
}

// Reader reads the samples of a DSDL dataset
type Reader struct {
	fs       afero.Fs
	log      *zap.Logger
	mediaDir string
	desc     *Description
	samples  []interface{}
	// paths holds the key path of each requested required field
	paths map[string]keyPath
	// extras holds the key path of each extra per-instance field
	extras     map[string]keyPath
	extraNames []string
	transforms []transformFunc
	// pos is the index of the next sample to read
	pos     int
	current *annotation.Sample
	err     error
}

// Open reads the dataset description and samples declared by cfg and returns
// a Reader positioned before the first sample
func Open(cfg annotation.Config) (*Reader, error) {

	fs := cfg.Fs

	if fs == nil {
		fs = afero.NewOsFs()
	}

	log := cfg.Logger

	if log == nil {
		log = zap.NewNop()
	}

	fs, err := locationFs(fs, cfg.Location)

	if err != nil {
		return nil, err
	}

	r := &Reader{
		fs:       fs,
		log:      log.Named("dsdl"),
		mediaDir: cfg.MediaDir,
		paths:    make(map[string]keyPath),
		extras:   make(map[string]keyPath),
	}

	r.transforms, err = compileTransforms(cfg.Transform)

	if err != nil {
		return nil, err
	}

	r.desc, err = LoadDescription(fs, cfg.DescriptionFile)

	if err != nil {
		return nil, err
	}

	if err := r.compilePaths(cfg); err != nil {
		return nil, err
	}

	r.samples, err = loadSamples(fs, cfg.DescriptionFile, r.desc)

	if err != nil {
		return nil, err
	}

	r.log.Info("opened dataset",
		zap.String("description", cfg.DescriptionFile),
		zap.String("version", r.desc.Version),
		zap.String("sampleType", r.desc.Data.SampleType),
		zap.Int("samples", len(r.samples)),
		zap.Int("classes", len(r.desc.ClassDom.Classes)),
	)

	return r, nil
}

// locationFs returns the filesystem files of the location are read through
func locationFs(fs afero.Fs, loc annotation.LocationConfig) (afero.Fs, error) {

	switch loc.Type {
	case "", annotation.LocalFileReader:
	default:
		return nil, errors.Errorf("unsupported location type %q, only %s is "+
			"supported", loc.Type, annotation.LocalFileReader)
	}

	if loc.WorkingDir == "" {
		return fs, nil
	}

	return afero.NewBasePathFs(fs, loc.WorkingDir), nil
}

// compilePaths resolves the key path of every required and extra field.
// Paths given in the config override those of the description which override
// the defaults.
func (r *Reader) compilePaths(cfg annotation.Config) error {

	required := cfg.RequiredFields

	if len(required) == 0 {
		required = annotation.RequiredFields
	}

	isRequired := make(map[string]bool, len(required))

	for _, field := range required {
		isRequired[field] = true

		p, ok := cfg.SpecificKeyPath[field]

		if !ok {
			p, ok = r.desc.Data.Fields[field]
		}

		if !ok {
			p, ok = DefaultFieldPaths[field]
		}

		if !ok {
			return errors.Errorf("no key path known for required field %q", field)
		}

		kp, err := parseKeyPath(p)

		if err != nil {
			return errors.Wrapf(err, "field %s", field)
		}

		r.paths[field] = kp
	}

	for field, p := range cfg.SpecificKeyPath {
		if isRequired[field] {
			continue
		}

		kp, err := parseKeyPath(p)

		if err != nil {
			return errors.Wrapf(err, "field %s", field)
		}

		if !kp.fansOut() {
			return errors.Errorf("extra field %s key path %s must select one "+
				"value per instance with %q", field, kp, fanOut)
		}

		r.extras[field] = kp
		r.extraNames = append(r.extraNames, field)
	}

	sort.Strings(r.extraNames)

	return nil
}

// Scan advances to the next sample
func (r *Reader) Scan() bool {

	if r.err != nil || r.pos >= len(r.samples) {
		r.current = nil
		return false
	}

	idx := r.pos
	r.pos++

	s, err := r.buildSample(r.samples[idx])

	if err != nil {
		r.err = errors.Wrapf(err, "sample %d", idx)
		r.current = nil
		return false
	}

	r.current = s
	return true
}

// Sample returns the sample read by the last call to Scan
func (r *Reader) Sample() *annotation.Sample {
	return r.current
}

// Err returns the first error encountered while scanning
func (r *Reader) Err() error {
	return r.err
}

// ClassNames returns the class domain declared by the description
func (r *Reader) ClassNames() []string {
	return r.desc.ClassDom.Classes
}

// Meta returns the description metadata
func (r *Reader) Meta() map[string]string {
	return r.desc.MetaStrings()
}

// Len returns the number of samples in the dataset
func (r *Reader) Len() int {
	return len(r.samples)
}

// Close releases the samples held by the reader
func (r *Reader) Close() error {
	r.samples = nil
	r.current = nil
	return nil
}

// first returns the first value a field selects
func (r *Reader) first(field string, doc interface{}) (interface{}, bool) {

	kp, ok := r.paths[field]

	if !ok {
		return nil, false
	}

	vals, found := kp.resolve(doc)

	if !found || len(vals) == 0 || vals[0] == nil {
		return nil, false
	}

	return vals[0], true
}

// perInstance returns the values a field selects, checking there is one per
// instance
func perInstance(field string, kp keyPath, doc interface{}, n int) ([]interface{}, bool, error) {

	vals, found := kp.resolve(doc)

	if !found {
		return nil, false, nil
	}

	if len(vals) != n {
		return nil, true, &MisalignedFieldError{Field: field, Expected: n, Got: len(vals)}
	}

	return vals, true, nil
}

// buildSample decodes one raw sample document
func (r *Reader) buildSample(doc interface{}) (*annotation.Sample, error) {

	s := &annotation.Sample{}

	if v, ok := r.first(annotation.FieldImage, doc); ok {
		img, err := decodeImage(v)

		if err != nil {
			return nil, err
		}

		s.Image = img
	}

	if v, ok := r.first(annotation.FieldImageShape, doc); ok {
		shape, err := decodeShape(v)

		if err != nil {
			return nil, err
		}

		s.Shape = shape
	}

	if err := r.buildInstances(s, doc); err != nil {
		return nil, err
	}

	for _, fn := range r.transforms {
		fn(s)
	}

	if s.Shape == nil && s.Image != nil {
		shape, err := probeShape(r.fs, r.mediaDir, s.Image.Location)

		if err != nil {
			return nil, err
		}

		r.log.Debug("read image shape from header",
			zap.String("image", s.Image.Location),
			zap.Int("width", shape.Width),
			zap.Int("height", shape.Height),
		)

		s.Shape = shape
	}

	return s, nil
}

// buildInstances collects the per-instance fields of a sample into one
// Instance per rotated bounding box
func (r *Reader) buildInstances(s *annotation.Sample, doc interface{}) error {

	bboxPath, ok := r.paths[annotation.FieldRotatedBBox]

	if !ok {
		return nil
	}

	boxes, found := bboxPath.resolve(doc)

	if !found {
		return nil
	}

	s.HasRotatedBBox = true
	n := len(boxes)
	s.Instances = make([]annotation.Instance, n)

	for i, v := range boxes {
		s.Instances[i].BBox = decodeRBBox(v)
	}

	if kp, ok := r.paths[annotation.FieldLabel]; ok {
		labels, found, err := perInstance(annotation.FieldLabel, kp, doc, n)

		if err != nil {
			return err
		}

		for i := 0; found && i < n; i++ {
			if s.Instances[i].Label, err = decodeLabel(labels[i], r.ClassNames()); err != nil {
				return errors.Wrapf(err, "instance %d", i)
			}
		}
	}

	if kp, ok := r.paths[annotation.FieldIgnoreFlag]; ok {
		flags, found, err := perInstance(annotation.FieldIgnoreFlag, kp, doc, n)

		if err != nil {
			return err
		}

		s.HasIgnoreFlag = found

		for i := 0; found && i < n; i++ {
			if s.Instances[i].IgnoreFlag, err = decodeFlag(flags[i]); err != nil {
				return errors.Wrapf(err, "instance %d", i)
			}
		}
	}

	if n == 0 {
		return nil
	}

	for _, name := range r.extraNames {
		vals, found, err := perInstance(name, r.extras[name], doc, n)

		if err != nil {
			return err
		}

		if !found {
			return errors.Errorf("extra field %s not found at %s", name, r.extras[name])
		}

		for i := 0; i < n; i++ {
			if s.Instances[i].Extra == nil {
				s.Instances[i].Extra = make(map[string]interface{}, len(r.extraNames))
			}

			s.Instances[i].Extra[name] = vals[i]
		}
	}

	return nil
}
