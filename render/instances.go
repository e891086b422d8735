package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/swdee/go-dsdl/dataset"
	"gocv.io/x/gocv"
)

// boxLabel holds the details of a class label to render above an instance
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Instances renders the rotated box polygon of each annotated instance with
// its class label.  Ignored instances are drawn in grey and instances without
// a bbox are skipped.
func Instances(img *gocv.Mat, instances []dataset.Instance,
	classNames []string, font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for _, inst := range instances {

		pts := polygonPoints(inst.BBox)

		if pts == nil {
			continue
		}

		// Get the color for this class
		useClr := classColor(inst.BBoxLabel)

		if inst.IgnoreFlag != 0 {
			useClr = Grey
		}

		// draw polygon lines around the instance
		ptsVec := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(img, ptsVec, true, useClr, lineThickness)
		ptsVec.Close()

		// create text for label
		text := className(classNames, inst.BBoxLabel)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// place the label over the topmost corner
		top := findTopPoint(pts)

		var centerX int

		switch font.Alignment {
		case Center:
			centerX = top.X

		case Right:
			centerX = top.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = top.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		// Adjust the label position so the text is centered horizontally
		labelPosition := image.Pt(centerX-textSize.X/2, top.Y-font.BottomPad)

		// create box for placing text on
		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			top.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, top.Y)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw all precalculated box labels so they are the top most layer on the
	// image and don't get overlapped by neighbouring polygons
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// polygonPoints converts a flattened x0,y0,x1,y1,... polygon into image
// points, returning nil when there are fewer than three points
func polygonPoints(flat []float64) []image.Point {

	if len(flat) < 6 || len(flat)%2 != 0 {
		return nil
	}

	pts := make([]image.Point, len(flat)/2)

	for i := range pts {
		pts[i] = image.Pt(int(math.Round(flat[2*i])), int(math.Round(flat[2*i+1])))
	}

	return pts
}

// findTopPoint finds the highest point (Y axis) of the given points
func findTopPoint(pts []image.Point) image.Point {
	topPoint := pts[0]
	for _, pt := range pts[1:] {
		if pt.Y < topPoint.Y {
			topPoint = pt
		}
	}
	return topPoint
}

// classColor returns the color for a class label, wrapping labels beyond the
// palette and negative labels back into it
func classColor(label int) color.RGBA {

	idx := label % len(classColors)

	if idx < 0 {
		idx += len(classColors)
	}

	return classColors[idx]
}

// className returns the name of a class label, or the label number when it
// is outside the class names
func className(classNames []string, label int) string {

	if label >= 0 && label < len(classNames) {
		return classNames[label]
	}

	return fmt.Sprintf("class %d", label)
}
