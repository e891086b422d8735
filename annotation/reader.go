package annotation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LocalFileReader is the only location type readers currently support
const LocalFileReader = "LocalFileReader"

// LocationConfig describes where the files of a dataset are read from
type LocationConfig struct {
	// Type of location, eg: LocalFileReader
	Type string
	// WorkingDir is the directory relative paths are resolved against, an
	// empty value uses the filesystem as is
	WorkingDir string
}

// Config holds the parameters used to open a Reader
type Config struct {
	// DescriptionFile is the path of the dataset description
	DescriptionFile string
	// Location configures how files are accessed
	Location LocationConfig
	// RequiredFields are the sample fields to read
	RequiredFields []string
	// SpecificKeyPath maps extra field names to their path within a sample
	SpecificKeyPath map[string]string
	// Transform maps a field name to the pre-transform applied to it while
	// reading
	Transform map[string]string
	// MediaDir is the directory image locations are relative to, used when
	// image dimensions have to be read from the image itself
	MediaDir string
	// Fs is the filesystem to read from, defaults to the OS filesystem
	Fs afero.Fs
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// Reader yields the raw annotation samples of a dataset one at a time, in
// the manner of bufio.Scanner
type Reader interface {
	// Scan advances to the next sample, returning false at the end of the
	// dataset or on error
	Scan() bool
	// Sample returns the sample read by the last call to Scan
	Sample() *Sample
	// Err returns the first error encountered while scanning
	Err() error
	// ClassNames returns the class domain of the dataset in order
	ClassNames() []string
	// Meta returns the descriptive metadata of the dataset
	Meta() map[string]string
	// Close releases the reader
	Close() error
}

// Opener creates a Reader for a backend
type Opener func(cfg Config) (Reader, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// importPaths holds the package that registers each known backend so a
// missing registration can be reported with the fix
var importPaths = map[string]string{
	"dsdl": "github.com/swdee/go-dsdl",
}

// UnavailableError is returned when a reader backend has not been registered
// with the program
type UnavailableError struct {
	Backend string
}

func (e *UnavailableError) Error() string {

	if path, ok := importPaths[e.Backend]; ok {
		return fmt.Sprintf("annotation backend %q is not available, add "+
			"`import _ \"%s\"` to your program to register it", e.Backend, path)
	}

	return fmt.Sprintf("annotation backend %q is not available, registered "+
		"backends are %v", e.Backend, Backends())
}

// Register makes a reader backend available by name.  It panics if called
// twice with the same name or with a nil Opener.
func Register(name string, opener Opener) {

	backendsMu.Lock()
	defer backendsMu.Unlock()

	if opener == nil {
		panic("annotation: Register opener is nil")
	}

	if _, dup := backends[name]; dup {
		panic("annotation: Register called twice for backend " + name)
	}

	backends[name] = opener
}

// Available reports whether the named backend is registered
func Available(name string) bool {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	_, ok := backends[name]
	return ok
}

// Backends returns the sorted names of registered backends
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))

	for name := range backends {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Open opens a Reader using the named backend
func Open(name string, cfg Config) (Reader, error) {

	backendsMu.RLock()
	opener, ok := backends[name]
	backendsMu.RUnlock()

	if !ok {
		return nil, &UnavailableError{Backend: name}
	}

	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return opener(cfg)
}
