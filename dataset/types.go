package dataset

import (
	"encoding/json"
	"fmt"
)

// Instance is one annotated object of an image in training form
type Instance struct {
	// BBox is the rotated box as four (x,y) corners flattened to 8 values,
	// nil when the annotation stored no usable geometry
	BBox []float64
	// BBoxLabel is the training label of the object
	BBoxLabel int
	// IgnoreFlag is 1 when the object is excluded from loss and metrics
	IgnoreFlag int
	// Extra holds additional per-instance values requested by key path
	Extra map[string]interface{}
}

// Map returns the instance as a flat map keyed bbox, bbox_label,
// ignore_flag plus any extra keys.  The bbox key is absent when the
// instance has no geometry.
func (i Instance) Map() map[string]interface{} {

	m := make(map[string]interface{}, len(i.Extra)+3)

	for k, v := range i.Extra {
		m[k] = v
	}

	if i.BBox != nil {
		m["bbox"] = i.BBox
	}

	m["bbox_label"] = i.BBoxLabel
	m["ignore_flag"] = i.IgnoreFlag

	return m
}

// MarshalJSON encodes the flat map form of the instance
func (i Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Map())
}

// Clone returns a deep copy of the instance.  Extra values are copied
// shallowly.
func (i Instance) Clone() Instance {

	c := i

	if i.BBox != nil {
		c.BBox = append([]float64(nil), i.BBox...)
	}

	if i.Extra != nil {
		c.Extra = make(map[string]interface{}, len(i.Extra))

		for k, v := range i.Extra {
			c.Extra[k] = v
		}
	}

	return c
}

// DataInfo is the training record of one image
type DataInfo struct {
	// ImgID is the position of the image in the annotation iteration
	ImgID     int        `json:"img_id"`
	ImgPath   string     `json:"img_path"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Instances []Instance `json:"instances"`
}

// Map returns the record as a map keyed img_id, img_path, width, height and
// instances, with each instance in its flat map form
func (d DataInfo) Map() map[string]interface{} {

	instances := make([]map[string]interface{}, len(d.Instances))

	for i, inst := range d.Instances {
		instances[i] = inst.Map()
	}

	return map[string]interface{}{
		"img_id":    d.ImgID,
		"img_path":  d.ImgPath,
		"width":     d.Width,
		"height":    d.Height,
		"instances": instances,
	}
}

// Clone returns a deep copy of the record
func (d DataInfo) Clone() DataInfo {

	c := d
	c.Instances = make([]Instance, len(d.Instances))

	for i, inst := range d.Instances {
		c.Instances[i] = inst.Clone()
	}

	return c
}

// Labels returns the training label of every instance
func (d DataInfo) Labels() []int {

	labels := make([]int, len(d.Instances))

	for i, inst := range d.Instances {
		labels[i] = inst.BBoxLabel
	}

	return labels
}

func (d DataInfo) String() string {
	return fmt.Sprintf("image %d %s (%dx%d) with %d instances", d.ImgID,
		d.ImgPath, d.Width, d.Height, len(d.Instances))
}

// Metainfo describes the dataset a data list was built from
type Metainfo struct {
	// Classes is the class vocabulary labels index into
	Classes []string `json:"classes"`
	// Meta holds the descriptive metadata of the annotation source
	Meta map[string]string `json:"meta"`
}
