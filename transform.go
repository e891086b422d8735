package dsdl

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/swdee/go-dsdl/annotation"
)

// transformFunc modifies a sample in place after it has been read
type transformFunc func(s *annotation.Sample)

// transforms holds the pre-transforms available for each field
var transforms = map[string]map[string]transformFunc{
	annotation.FieldLabel: {
		"snake_case": snakeCaseLabels,
	},
	annotation.FieldImage: {
		"basename": baseNameImage,
	},
	annotation.FieldRotatedBBox: {
		"radians": angleUnit(true),
		"degrees": angleUnit(false),
	},
}

// compileTransforms looks up the pre-transforms configured per field and
// returns them in field name order
func compileTransforms(cfg map[string]string) ([]transformFunc, error) {

	fields := make([]string, 0, len(cfg))

	for field := range cfg {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	var out []transformFunc

	for _, field := range fields {
		name := cfg[field]
		avail, ok := transforms[field]

		if !ok {
			return nil, errors.Errorf("no pre-transforms exist for field %q", field)
		}

		fn, ok := avail[name]

		if !ok {
			return nil, errors.Errorf("unknown pre-transform %q for field %q",
				name, field)
		}

		out = append(out, fn)
	}

	return out, nil
}

// snakeCaseLabels rewrites category names such as "Small-Vehicle" to the
// "small_vehicle" form used by class domains
func snakeCaseLabels(s *annotation.Sample) {

	r := strings.NewReplacer("-", "_", " ", "_")

	for i := range s.Instances {
		if lbl := s.Instances[i].Label; lbl != nil {
			lbl.CategoryName = r.Replace(strings.ToLower(strings.TrimSpace(lbl.CategoryName)))
		}
	}
}

// baseNameImage drops the directories from the image location
func baseNameImage(s *annotation.Sample) {
	if s.Image != nil {
		s.Image.Location = path.Base(s.Image.Location)
	}
}

// angleUnit sets the unit rotated rectangle angles are interpreted in
func angleUnit(radians bool) transformFunc {
	return func(s *annotation.Sample) {
		for i := range s.Instances {
			if box := s.Instances[i].BBox; box != nil {
				box.Radians = radians
			}
		}
	}
}
