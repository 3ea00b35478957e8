package weatherboard

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cenkalti/backoff/v4"
)

// DecodeHex decodes every frame in a hex-encoded capture of the serial
// stream. Whitespace, '|' and '_' separators are ignored.
func DecodeHex(ctx context.Context, raw string, opts Options) ([]Reading, error) {
	data, err := decodeHex(raw)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(ctx, data, opts)
}

// DecodeBytes decodes every frame in a captured stream. Bytes after the
// last terminator are ignored.
func DecodeBytes(ctx context.Context, data []byte, opts Options) ([]Reading, error) {
	if opts.BackOff == nil {
		opts.BackOff = &backoff.ZeroBackOff{}
	}
	d, err := NewDecoder(bytes.NewReader(data), opts)
	if err != nil {
		return nil, err
	}
	var readings []Reading
	for {
		r, err := d.DecodeOne(ctx)
		if errors.Is(err, io.EOF) {
			return readings, nil
		}
		if err != nil {
			return readings, err
		}
		readings = append(readings, r)
	}
}

func decodeHex(input string) ([]byte, error) {
	clean := stripWhitespace(input)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex capture must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripWhitespace(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
