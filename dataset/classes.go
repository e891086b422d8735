package dataset

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// narrowClassIndex is the only class index LabelNarrow passes through
const narrowClassIndex = 1

// DOTAv1Classes returns the 15 object classes of the DOTA v1.0 dataset in
// their canonical order
func DOTAv1Classes() []string {
	return []string{
		"plane", "baseball_diamond", "bridge", "ground_track_field",
		"small_vehicle", "large_vehicle", "ship", "tennis_court",
		"basketball_court", "storage_tank", "soccer_ball_field", "roundabout",
		"harbor", "swimming_pool", "helicopter",
	}
}

// LoadClasses reads the class vocabulary from the given text file.
// It should contain one class name per line, blank lines are skipped.
func LoadClasses(fs afero.Fs, file string) ([]string, error) {

	// open the file
	f, err := fs.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening classes file")
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var classes []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		classes = append(classes, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading classes file")
	}

	if len(classes) == 0 {
		return nil, errors.Errorf("classes file %s holds no classes", file)
	}

	return classes, nil
}

// classIndex maps each class name to the position of its first occurrence
func classIndex(classes []string) map[string]int {

	idx := make(map[string]int, len(classes))

	for i, name := range classes {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	return idx
}
