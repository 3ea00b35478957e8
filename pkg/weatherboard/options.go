package weatherboard

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/fieldmap"
	"github.com/d21d3q/goweatherboard/internal/frame"
	internalopts "github.com/d21d3q/goweatherboard/internal/options"
)

// Options configures a Decoder. The zero value decodes with the default
// preset, a 30 byte payload bound and the default backoff.
type Options struct {
	// FieldMap names a registered preset. Ignored when Fields or
	// FieldsFile is set.
	FieldMap string
	// Fields injects a map directly.
	Fields *FieldMap
	// FieldsFile loads a YAML field-map file.
	FieldsFile string
	// Overrides rebinds codes on top of the chosen map, for example
	// "0=altitude:float,5=temperature1".
	Overrides string

	MaxPayload int
	BackOff    backoff.BackOff
	Logger     *logrus.Entry
}

func (opts Options) toInternal() (fieldmap.Map, []frame.Option, *logrus.Entry, error) {
	fields, err := opts.fieldMap()
	if err != nil {
		return fieldmap.Map{}, nil, nil, err
	}
	overrides, err := internalopts.ParseFieldOverrides(opts.Overrides)
	if err != nil {
		return fieldmap.Map{}, nil, nil, err
	}
	if fields, err = internalopts.ApplyFieldOverrides(fields, overrides); err != nil {
		return fieldmap.Map{}, nil, nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("field_map", fields.Name())

	frameOpts := []frame.Option{
		frame.WithMaxPayload(opts.MaxPayload),
		frame.WithBackOff(opts.BackOff),
		frame.WithLogger(log),
	}
	return fields, frameOpts, log, nil
}

func (opts Options) fieldMap() (fieldmap.Map, error) {
	switch {
	case opts.Fields != nil:
		return *opts.Fields, nil
	case opts.FieldsFile != "":
		return fieldmap.Load(opts.FieldsFile)
	case opts.FieldMap != "":
		return fieldmap.Lookup(opts.FieldMap)
	default:
		return fieldmap.Lookup(fieldmap.DefaultPreset)
	}
}

// Preset returns a registered field map by name.
func Preset(name string) (FieldMap, error) { return fieldmap.Lookup(name) }

// Presets lists the registered field-map names.
func Presets() []string { return fieldmap.Names() }

// LoadFieldMap reads a YAML field-map file.
func LoadFieldMap(path string) (FieldMap, error) { return fieldmap.Load(path) }
