package dsdl

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"github.com/swdee/go-dsdl/annotation"
)

// toFloat converts a decoded numeric value to float64
func toFloat(v interface{}) (float64, bool) {

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	return 0, false
}

// toInt converts a decoded integral value to int
func toInt(v interface{}) (int, bool) {

	f, ok := toFloat(v)

	if !ok || f != math.Trunc(f) {
		return 0, false
	}

	return int(f), true
}

// toFloats converts a list of numbers
func toFloats(v interface{}) ([]float64, bool) {

	list, ok := v.([]interface{})

	if !ok {
		return nil, false
	}

	out := make([]float64, len(list))

	for i, elem := range list {
		if out[i], ok = toFloat(elem); !ok {
			return nil, false
		}
	}

	return out, true
}

// toPoints converts a list of [x,y] pairs, or a flat list of an even number
// of coordinates, into points
func toPoints(v interface{}) ([][2]float64, bool) {

	list, ok := v.([]interface{})

	if !ok || len(list) == 0 {
		return nil, false
	}

	if flat, ok := toFloats(list); ok {
		if len(flat)%2 != 0 {
			return nil, false
		}

		pts := make([][2]float64, len(flat)/2)

		for i := range pts {
			pts[i] = [2]float64{flat[2*i], flat[2*i+1]}
		}

		return pts, true
	}

	pts := make([][2]float64, len(list))

	for i, elem := range list {
		xy, ok := toFloats(elem)

		if !ok || len(xy) != 2 {
			return nil, false
		}

		pts[i] = [2]float64{xy[0], xy[1]}
	}

	return pts, true
}

// decodeImage decodes an Image field value
func decodeImage(v interface{}) (*annotation.ImageRef, error) {

	switch t := v.(type) {
	case string:
		return &annotation.ImageRef{Location: t}, nil

	case map[string]interface{}:
		if loc, ok := t["location"].(string); ok {
			return &annotation.ImageRef{Location: loc}, nil
		}
	}

	return nil, errors.Errorf("invalid Image value %v", v)
}

// decodeShape decodes an ImageShape field value which is stored height first
// as [height, width] or as an object with width and height keys
func decodeShape(v interface{}) (*annotation.ImageShape, error) {

	switch t := v.(type) {
	case []interface{}:
		if len(t) >= 2 {
			h, okH := toInt(t[0])
			w, okW := toInt(t[1])

			if okH && okW {
				return &annotation.ImageShape{Width: w, Height: h}, nil
			}
		}

	case map[string]interface{}:
		w, okW := toInt(t["width"])
		h, okH := toInt(t["height"])

		if okH && okW {
			return &annotation.ImageShape{Width: w, Height: h}, nil
		}
	}

	return nil, errors.Errorf("invalid ImageShape value %v", v)
}

// decodeRBBox decodes a RotatedBBox field value.  Values that hold neither a
// four point polygon nor a five value rotated rectangle are returned as an
// empty box rather than an error.
func decodeRBBox(v interface{}) *annotation.RBBox {

	if v == nil {
		return nil
	}

	box := &annotation.RBBox{}

	if m, ok := v.(map[string]interface{}); ok {
		if pts, ok := toPoints(m["polygon"]); ok && len(pts) == 4 {
			box.Polygon = pts
		}

		if r, ok := toFloats(m["rbbox"]); ok && len(r) == 5 {
			box.RBox = r
		}

		return box
	}

	// five scalars is a rotated rectangle, otherwise try for corner points
	if r, ok := toFloats(v); ok && len(r) == 5 {
		box.RBox = r
		return box
	}

	if pts, ok := toPoints(v); ok && len(pts) == 4 {
		box.Polygon = pts
	}

	return box
}

// decodeLabel decodes a Label field value stored either as a category name
// or as the 1-based index of the category in the class domain
func decodeLabel(v interface{}, classes []string) (*annotation.Label, error) {

	if v == nil {
		return nil, nil
	}

	if name, ok := v.(string); ok {
		return &annotation.Label{CategoryName: name}, nil
	}

	if m, ok := v.(map[string]interface{}); ok {
		if name, ok := m["category_name"].(string); ok {
			return &annotation.Label{CategoryName: name}, nil
		}

		v = m["index"]
	}

	idx, ok := toInt(v)

	if !ok {
		return nil, errors.Errorf("invalid Label value %v", v)
	}

	if idx < 1 || idx > len(classes) {
		return nil, errors.Errorf("Label index %d outside class domain of %d classes",
			idx, len(classes))
	}

	return &annotation.Label{CategoryName: classes[idx-1], Index: idx}, nil
}

// decodeFlag decodes an ignore flag stored as an integer or boolean
func decodeFlag(v interface{}) (*int, error) {

	if v == nil {
		return nil, nil
	}

	var flag int

	switch t := v.(type) {
	case bool:
		if t {
			flag = 1
		}

	default:
		n, ok := toInt(v)

		if !ok {
			return nil, errors.Errorf("invalid ignore_flag value %v", v)
		}

		flag = n
	}

	return &flag, nil
}
