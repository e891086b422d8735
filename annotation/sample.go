package annotation

// Field names of a rotated object detection sample
const (
	FieldImage       = "Image"
	FieldImageShape  = "ImageShape"
	FieldLabel       = "Label"
	FieldRotatedBBox = "RotatedBBox"
	FieldIgnoreFlag  = "ignore_flag"
)

// RequiredFields are the fields a rotated detection dataset reads from every
// sample, in the order they are requested from the reader
var RequiredFields = []string{
	FieldImage,
	FieldImageShape,
	FieldLabel,
	FieldRotatedBBox,
	FieldIgnoreFlag,
}

// ImageRef is a reference to the media file of a sample
type ImageRef struct {
	// Location is the path of the image relative to the media directory
	Location string
}

// ImageShape holds the dimensions of a sample image in pixels
type ImageShape struct {
	Width  int
	Height int
}

// Label is the category annotated on an instance
type Label struct {
	// CategoryName is the class name as it appears in the class domain
	CategoryName string
	// Index is the 1-based position of the category in the class domain,
	// or 0 when the label was stored by name only
	Index int
}

// RBBox is a rotated bounding box stored either as an explicit four corner
// polygon or as a center/size/angle tuple
type RBBox struct {
	// Polygon holds the four (x,y) corner points when stored explicitly
	Polygon [][2]float64
	// RBox holds cx, cy, w, h, angle when stored as a rotated rectangle
	RBox []float64
	// Radians is set when the RBox angle is in radians rather than degrees
	Radians bool
}

// HasPolygon reports whether an explicit polygon is stored
func (b *RBBox) HasPolygon() bool {
	return b != nil && len(b.Polygon) > 0
}

// HasRBox reports whether a center/size/angle tuple is stored
func (b *RBBox) HasRBox() bool {
	return b != nil && len(b.RBox) == 5
}

// Corners returns the corner points of the box, preferring the explicit
// polygon.  The second return value is false when neither form is stored.
func (b *RBBox) Corners() ([][2]float64, bool) {

	switch {
	case b.HasPolygon():
		return b.Polygon, true

	case b.HasRBox():
		r := b.RBox
		return RBBoxToPolygon(r[0], r[1], r[2], r[3], r[4], b.Radians), true
	}

	return nil, false
}

// Instance is a single annotated object of a sample.  Fields that were not
// stored for the object are nil.
type Instance struct {
	BBox       *RBBox
	Label      *Label
	IgnoreFlag *int
	// Extra holds values of additional fields requested by key path
	Extra map[string]interface{}
}

// Sample is the raw annotation record of one image
type Sample struct {
	Image *ImageRef
	Shape *ImageShape
	// HasRotatedBBox is set when the sample carries the rotated bounding box
	// field at all, even if it holds no instances
	HasRotatedBBox bool
	// HasIgnoreFlag is set when the sample carries the ignore flag field
	HasIgnoreFlag bool
	Instances     []Instance
}
