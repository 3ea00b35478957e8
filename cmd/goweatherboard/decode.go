package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

var (
	decodeCmd = &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a captured stream",
		Long: "decode prints one JSON line per frame found in a hex-encoded capture, " +
			"a raw capture file (--file), or hex lines typed on stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: runDecode,
	}

	captureFile string
)

func init() {
	decodeCmd.Flags().StringVar(&captureFile, "file", "", "raw binary capture of the serial stream")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logrus.NewEntry(setupLogger(cfg.Log))
	opts := decoderOptions(cfg, log)
	// captures never block, the live wait policy does not apply
	opts.BackOff = nil
	ctx := cmd.Context()

	switch {
	case captureFile != "":
		data, err := os.ReadFile(captureFile)
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}
		readings, err := weatherboard.DecodeBytes(ctx, data, opts)
		printReadings(readings)
		return err
	case len(args) == 1:
		return runHex(ctx, opts, args[0])
	default:
		return runInteractive(ctx, opts, log)
	}
}

func runInteractive(ctx context.Context, opts weatherboard.Options, log *logrus.Entry) error {
	scanner := bufio.NewScanner(os.Stdin)
	log.Info("goweatherboard decode mode. Paste a hex capture and press Enter (Ctrl+D to exit).")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runHex(ctx, opts, line); err != nil {
			log.WithError(err).Error("failed to decode capture")
		}
	}
	return scanner.Err()
}

func runHex(ctx context.Context, opts weatherboard.Options, hex string) error {
	readings, err := weatherboard.DecodeHex(ctx, hex, opts)
	printReadings(readings)
	return err
}

func printReadings(readings []weatherboard.Reading) {
	for _, r := range readings {
		fmt.Println(r.String())
	}
}
