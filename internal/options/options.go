package options

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/fieldmap"
)

type contextKey struct{}

// WithLogger stores the provided log entry inside the context.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	if entry == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, entry)
}

// Logger retrieves the log entry from context, falling back to the
// standard logger.
func Logger(ctx context.Context) *logrus.Entry {
	if v := ctx.Value(contextKey{}); v != nil {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// FieldOverride rebinds one code to a field.
type FieldOverride struct {
	Code  byte
	Field fieldmap.Field
}

// ParseFieldOverrides decodes a comma separated list such as
// "0=altitude:float, 5=temperature1, 0x1F=status:int". The kind defaults to
// float.
func ParseFieldOverrides(input string) ([]FieldOverride, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	var out []FieldOverride
	for _, item := range strings.Split(stripWhitespace(input), ",") {
		if item == "" {
			continue
		}
		codeText, binding, ok := strings.Cut(item, "=")
		if !ok || binding == "" {
			return nil, fmt.Errorf("field override %q: want code=name[:kind]", item)
		}
		code, err := fieldmap.ParseCode(codeText)
		if err != nil {
			return nil, fmt.Errorf("field override %q: %w", item, err)
		}
		name, kindText, hasKind := strings.Cut(binding, ":")
		if name == "" {
			return nil, fmt.Errorf("field override %q: empty name", item)
		}
		kind := fieldmap.KindFloat
		if hasKind {
			if kind, err = fieldmap.ParseKind(kindText); err != nil {
				return nil, fmt.Errorf("field override %q: %w", item, err)
			}
		}
		out = append(out, FieldOverride{Code: code, Field: fieldmap.Field{Name: name, Kind: kind}})
	}
	return out, nil
}

// ApplyFieldOverrides rebinds each override on top of m in order.
func ApplyFieldOverrides(m fieldmap.Map, overrides []FieldOverride) (fieldmap.Map, error) {
	var err error
	for _, o := range overrides {
		if m, err = m.With(o.Code, o.Field); err != nil {
			return fieldmap.Map{}, err
		}
	}
	return m, nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
