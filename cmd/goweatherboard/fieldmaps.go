package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

var fieldmapsCmd = &cobra.Command{
	Use:   "fieldmaps [name...]",
	Short: "Print field-map presets as YAML",
	Long: "fieldmaps prints the registered presets in the field-map file format, " +
		"ready to be copied and edited for --fields-file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = weatherboard.Presets()
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		for _, name := range names {
			m, err := weatherboard.Preset(name)
			if err != nil {
				return err
			}
			if err := enc.Encode(m); err != nil {
				return err
			}
		}
		return nil
	},
}
