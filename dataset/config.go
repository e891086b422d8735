package dataset

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v2"
)

// DefaultBackend is the annotation backend datasets read through unless
// configured otherwise
const DefaultBackend = "dsdl"

// imgPathKey is the data prefix key image locations are joined to
const imgPathKey = "img_path"

// LabelMapping selects how category names are turned into training labels
type LabelMapping string

const (
	// LabelNarrow passes through only the class at index 1 and maps every
	// other known class to label 0.  This reproduces the labels existing
	// DOTA training runs were produced with.
	LabelNarrow LabelMapping = "narrow"
	// LabelIndex maps each class name to its index in the class list
	LabelIndex LabelMapping = "index"
)

// FilterConfig controls which loaded images are kept for training
type FilterConfig struct {
	// FilterEmptyGT drops images without any instances
	FilterEmptyGT bool `yaml:"filter_empty_gt"`
	// MinSize is the minimum size the shorter image side must have
	MinSize float64 `yaml:"min_size"`
}

// Config holds the construction parameters of a Dataset
type Config struct {
	// Backend is the annotation backend to read with, defaults to dsdl
	Backend string `yaml:"backend"`
	// DataRoot is joined to AnnFile, ClassesFile and relative DataPrefix
	// entries
	DataRoot string `yaml:"data_root"`
	// AnnFile is the dataset description file
	AnnFile string `yaml:"ann_file"`
	// DataPrefix holds directory prefixes, img_path is joined to every image
	// location
	DataPrefix map[string]string `yaml:"data_prefix"`
	// FilterCfg configures the filter stage, nil keeps every image
	FilterCfg *FilterConfig `yaml:"filter_cfg"`
	// TestMode disables filtering
	TestMode bool `yaml:"test_mode"`
	// LazyInit defers loading until FullInit is called
	LazyInit bool `yaml:"lazy_init"`
	// SpecificKeyPath maps field names to their key path within a sample.
	// Names that are not one of the required fields are copied onto every
	// instance as extra values.
	SpecificKeyPath map[string]string `yaml:"specific_key_path"`
	// PreTransform maps a field name to the pre-transform the reader applies
	PreTransform map[string]string `yaml:"pre_transform"`
	// Classes is the ordered class vocabulary used for label lookup
	Classes []string `yaml:"classes"`
	// ClassesFile is a text file holding one class name per line
	ClassesFile string `yaml:"classes_file"`
	// LabelMapping defaults to LabelNarrow
	LabelMapping LabelMapping `yaml:"label_mapping"`
}

// withDefaults returns a copy of the config with unset values defaulted
func (c Config) withDefaults() Config {

	if c.Backend == "" {
		c.Backend = DefaultBackend
	}

	if c.LabelMapping == "" {
		c.LabelMapping = LabelNarrow
	}

	prefix := make(map[string]string, len(c.DataPrefix)+1)
	prefix[imgPathKey] = ""

	for k, v := range c.DataPrefix {
		prefix[k] = v
	}

	c.DataPrefix = prefix

	return c
}

// Validate checks the config for values that prevent constructing a
// Dataset, reporting every problem found
func (c Config) Validate() error {

	var err error

	if c.AnnFile == "" {
		err = multierr.Append(err, errors.New("ann_file is required"))
	}

	switch c.LabelMapping {
	case "", LabelNarrow, LabelIndex:
	default:
		err = multierr.Append(err, errors.Errorf("unknown label_mapping %q, "+
			"expected %s or %s", c.LabelMapping, LabelNarrow, LabelIndex))
	}

	if len(c.Classes) > 0 && c.ClassesFile != "" {
		err = multierr.Append(err, errors.New("classes and classes_file are "+
			"mutually exclusive"))
	}

	return err
}

// LoadConfig reads a YAML dataset config.  Unknown keys are rejected so
// misspelt options do not go unnoticed.
func LoadConfig(fs afero.Fs, file string) (Config, error) {

	var cfg Config

	data, err := afero.ReadFile(fs, file)

	if err != nil {
		return cfg, errors.Wrap(err, "error reading dataset config")
	}

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "error parsing dataset config %s", file)
	}

	return cfg, nil
}
