package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/goweatherboard/internal/config"
	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

var (
	rootCmd = &cobra.Command{
		Use:   "goweatherboard",
		Short: "Read the weather board over its serial link",
		Long: "goweatherboard decodes the weather board's 'w' <code> <text> ESC frames, " +
			"either live from a serial device or from captured streams.",
		SilenceUsage: true,
	}

	configPath string
	logLevel   string
	fieldMap   string
	fieldsFile string
	overrides  string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "goweatherboard.yaml", "configuration file")
	flags.StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.StringVar(&fieldMap, "field-map", "", "field-map preset (see the fieldmaps command)")
	flags.StringVar(&fieldsFile, "fields-file", "", "YAML field-map file, takes precedence over --field-map")
	flags.StringVar(&overrides, "fields", "", `code overrides, e.g. "0=altitude:float,5=temperature1"`)
	rootCmd.AddCommand(readCmd, decodeCmd, fieldmapsCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig reads --config, falling back to defaults when the file does
// not exist, and applies the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("config %s not found, using defaults", configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if fieldMap != "" {
		cfg.Decoder.FieldMap = fieldMap
	}
	if fieldsFile != "" {
		cfg.Decoder.FieldsFile = fieldsFile
	}
	if overrides != "" {
		cfg.Decoder.Overrides = overrides
	}
	return cfg, cfg.Validate()
}

func decoderOptions(cfg *config.Config, log *logrus.Entry) weatherboard.Options {
	return weatherboard.Options{
		FieldMap:   cfg.Decoder.FieldMap,
		FieldsFile: cfg.Decoder.FieldsFile,
		Overrides:  cfg.Decoder.Overrides,
		MaxPayload: cfg.Decoder.MaxPayload,
		BackOff:    cfg.Decoder.Backoff.BackOff(),
		Logger:     log.WithField("component", "decoder"),
	}
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file: %v, using stdout", err)
		}
	}

	return log
}
