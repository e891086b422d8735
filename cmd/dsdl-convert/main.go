// Command dsdl-convert loads a rotated object detection dataset described by
// a YAML config and writes its filtered data list as JSON or YAML.
package main

import (
	"encoding/json"
	"io"
	"log"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	_ "github.com/swdee/go-dsdl"
	"github.com/swdee/go-dsdl/dataset"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	args := struct {
		Config  string `arg:"required" help:"dataset YAML config file"`
		Out     string `arg:"-o" help:"output file, stdout when empty"`
		Format  string `arg:"-f" help:"output format, json or yaml"`
		Verbose bool   `arg:"-v" help:"enable debug logging"`
	}{
		Format: "json",
	}
	arg.MustParse(&args)

	logger, err := newLogger(args.Verbose)

	if err != nil {
		log.Fatal("Error creating logger: ", err)
	}

	err = convert(afero.NewOsFs(), args.Config, args.Out, args.Format, logger)

	// flush before exiting as log.Fatal skips deferred calls
	logger.Sync()

	if err != nil {
		log.Fatal("Error converting dataset: ", err)
	}
}

// convert loads the dataset of the config file and writes its data list to
// out, or stdout when out is empty
func convert(fs afero.Fs, config, out, format string, logger *zap.Logger) error {

	cfg, err := dataset.LoadConfig(fs, config)

	if err != nil {
		return err
	}

	d, err := dataset.New(cfg, dataset.WithFs(fs), dataset.WithLogger(logger))

	if err != nil {
		return err
	}

	list, err := d.DataList()

	if err != nil {
		return err
	}

	if out == "" {
		err = write(os.Stdout, format, d.Metainfo(), list)
	} else {
		err = writeFile(fs, out, format, d.Metainfo(), list)
	}

	if err != nil {
		return err
	}

	logger.Info("converted dataset",
		zap.String("config", config),
		zap.String("out", out),
		zap.Int("images", len(list)),
	)

	return nil
}

// writeFile writes the data list to file, reporting errors from closing the
// file as they may hold a failed flush
func writeFile(fs afero.Fs, file, format string, meta dataset.Metainfo, list []dataset.DataInfo) error {

	f, err := fs.Create(file)

	if err != nil {
		return errors.Wrap(err, "error creating output")
	}

	if err := write(f, format, meta, list); err != nil {
		f.Close()
		return errors.Wrapf(err, "error writing %s", file)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "error closing %s", file)
	}

	return nil
}

// newLogger returns a development logger when verbose, otherwise a
// production logger writing to stderr
func newLogger(verbose bool) (*zap.Logger, error) {

	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

// output is the document written for a converted dataset
type output struct {
	Metainfo dataset.Metainfo   `json:"metainfo"`
	DataList []dataset.DataInfo `json:"data_list"`
}

func write(w io.Writer, format string, meta dataset.Metainfo, list []dataset.DataInfo) error {

	switch format {
	case "json":
		data, err := json.MarshalIndent(output{Metainfo: meta, DataList: list}, "", "  ")

		if err != nil {
			return errors.Wrap(err, "encoding json")
		}

		_, err = w.Write(append(data, '\n'))
		return err

	case "yaml":
		maps := make([]map[string]interface{}, len(list))

		for i, info := range list {
			maps[i] = info.Map()
		}

		data, err := yaml.Marshal(map[string]interface{}{
			"metainfo": map[string]interface{}{
				"classes": meta.Classes,
				"meta":    meta.Meta,
			},
			"data_list": maps,
		})

		if err != nil {
			return errors.Wrap(err, "encoding yaml")
		}

		_, err = w.Write(data)
		return err
	}

	return errors.Errorf("unknown output format %q", format)
}
