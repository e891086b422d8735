package dsdl

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/swdee/go-dsdl/annotation"
	yaml "gopkg.in/yaml.v2"
)

// DefaultFieldPaths are the locations of the rotated detection fields within
// a sample when the description does not declare them
var DefaultFieldPaths = map[string]string{
	annotation.FieldImage:       "./media/image",
	annotation.FieldImageShape:  "./media/image_shape",
	annotation.FieldRotatedBBox: "./annotations/*/rbbox",
	annotation.FieldLabel:       "./annotations/*/category",
	annotation.FieldIgnoreFlag:  "./annotations/*/ignore_flag",
}

// Description is the YAML document describing a DSDL dataset
type Description struct {
	Version  string                 `yaml:"$dsdl-version"`
	Meta     map[string]interface{} `yaml:"meta"`
	ClassDom ClassDom               `yaml:"class-dom"`
	Data     DataSection            `yaml:"data"`
}

// ClassDom is the ordered class domain of the dataset
type ClassDom struct {
	Name    string   `yaml:"name"`
	Classes []string `yaml:"classes"`
}

// DataSection declares where samples are and how their fields are laid out
type DataSection struct {
	SampleType string `yaml:"sample-type"`
	// Fields maps a field name to its key path within a sample
	Fields map[string]string `yaml:"fields"`
	// SamplePath is the samples file relative to the description file
	SamplePath string `yaml:"sample-path"`
	// Samples may hold the samples inline instead of SamplePath
	Samples []interface{} `yaml:"samples"`
}

// MetaStrings returns the description metadata with values formatted as
// strings
func (d *Description) MetaStrings() map[string]string {

	meta := make(map[string]string, len(d.Meta))

	for k, v := range d.Meta {
		meta[k] = fmt.Sprint(v)
	}

	return meta
}

// LoadDescription reads and parses the description file at file
func LoadDescription(fs afero.Fs, file string) (*Description, error) {

	data, err := afero.ReadFile(fs, file)

	if err != nil {
		return nil, errors.Wrap(err, "error reading dataset description")
	}

	var desc Description

	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrapf(err, "error parsing dataset description %s", file)
	}

	if desc.Data.SamplePath == "" && desc.Data.Samples == nil {
		return nil, errors.Errorf("dataset description %s declares neither "+
			"sample-path nor samples", file)
	}

	return &desc, nil
}

// loadSamples returns the raw sample documents declared by the description,
// reading the samples file relative to the description when one is given
func loadSamples(fs afero.Fs, descFile string, desc *Description) ([]interface{}, error) {

	if desc.Data.SamplePath == "" {
		return normalizeList(desc.Data.Samples), nil
	}

	// DSDL writes local sample files as "$local / samples.json"
	samplePath := strings.TrimSpace(desc.Data.SamplePath)

	if strings.HasPrefix(samplePath, "$local") {
		samplePath = strings.TrimSpace(strings.TrimPrefix(samplePath, "$local"))
		samplePath = strings.TrimSpace(strings.TrimPrefix(samplePath, "/"))
	}

	if !filepath.IsAbs(samplePath) {
		samplePath = filepath.Join(filepath.Dir(descFile), samplePath)
	}

	data, err := afero.ReadFile(fs, samplePath)

	if err != nil {
		return nil, errors.Wrap(err, "error reading samples")
	}

	var doc interface{}

	switch strings.ToLower(filepath.Ext(samplePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
		doc = normalize(doc)

	default:
		err = json.Unmarshal(data, &doc)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "error parsing samples %s", samplePath)
	}

	switch v := doc.(type) {
	case []interface{}:
		return v, nil

	case map[string]interface{}:
		if list, ok := v["samples"].([]interface{}); ok {
			return list, nil
		}
	}

	return nil, errors.Errorf("samples %s must be a list or an object with "+
		"a samples list", samplePath)
}

// normalize converts the map[interface{}]interface{} values produced by the
// YAML decoder into map[string]interface{} so samples decoded from YAML and
// JSON share one shape
func normalize(v interface{}) interface{} {

	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))

		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}

		return m

	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalize(val)
		}

		return t

	case []interface{}:
		return normalizeList(t)
	}

	return v
}

func normalizeList(list []interface{}) []interface{} {
	for i := range list {
		list[i] = normalize(list[i])
	}

	return list
}
