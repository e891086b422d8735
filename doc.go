/*
go-dsdl reads rotated object detection datasets stored in the DSDL format and
adapts them into the flat per-image records used to train rotated detectors.

A DSDL dataset is a YAML description declaring the class domain of the
dataset and where its samples are, plus a JSON or YAML samples file holding
one record per image.  Importing this package registers the "dsdl" reader
backend with the annotation package, after which the dataset package can
build and filter data lists from it.

	import (
		_ "github.com/swdee/go-dsdl"
		"github.com/swdee/go-dsdl/dataset"
	)

See the cmd subdirectory for conversion and browsing tools.
*/
package dsdl
