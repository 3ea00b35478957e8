package fieldmap

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnmapped         = errors.New("code not in field map")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Kind is the numeric type a field's text is parsed as.
type Kind int

const (
	KindFloat Kind = iota + 1
	KindInt
)

// ParseKind accepts the spellings used in field-map files and overrides.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "double", "f":
		return KindFloat, nil
	case "int", "integer", "i":
		return KindInt, nil
	default:
		return 0, fmt.Errorf("unknown field kind %q (want float or int)", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalYAML implements yaml.Marshaler.
func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Field names one measurement and how to parse it.
type Field struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
}

// Value is a parsed measurement; only the member matching Kind is set.
type Value struct {
	Kind  Kind
	Float float64
	Int   int64
}

// Any returns the value as float64 or int64.
func (v Value) Any() any {
	if v.Kind == KindInt {
		return v.Int
	}
	return v.Float
}

// Map binds single-byte codes to fields. The zero Map is empty; build one
// with New or Parse. Maps are immutable, With returns a modified copy.
type Map struct {
	name   string
	fields map[byte]Field
}

// New validates fields and returns a Map.
func New(name string, fields map[byte]Field) (Map, error) {
	m := Map{name: name, fields: make(map[byte]Field, len(fields))}
	seen := make(map[string]byte, len(fields))
	for code, f := range fields {
		if err := validate(code, f); err != nil {
			return Map{}, err
		}
		if other, dup := seen[f.Name]; dup {
			return Map{}, fmt.Errorf("field %q bound to both %q and %q", f.Name, other, code)
		}
		seen[f.Name] = code
		m.fields[code] = f
	}
	return m, nil
}

// MustNew is New for package-level presets.
func MustNew(name string, fields map[byte]Field) Map {
	m, err := New(name, fields)
	if err != nil {
		panic(err)
	}
	return m
}

func validate(code byte, f Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("code %q: empty field name", code)
	}
	if f.Kind != KindFloat && f.Kind != KindInt {
		return fmt.Errorf("code %q: field %q has unknown kind %s", code, f.Name, f.Kind)
	}
	return nil
}

// Name returns the map's label.
func (m Map) Name() string { return m.name }

// Len reports the number of bound codes.
func (m Map) Len() int { return len(m.fields) }

// Lookup returns the field bound to code.
func (m Map) Lookup(code byte) (Field, bool) {
	f, ok := m.fields[code]
	return f, ok
}

// Codes returns the bound codes in ascending order.
func (m Map) Codes() []byte {
	codes := make([]byte, 0, len(m.fields))
	for c := range m.fields {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// With returns a copy where code is bound to f. Any other code previously
// carrying f.Name is unbound so names stay unique.
func (m Map) With(code byte, f Field) (Map, error) {
	if err := validate(code, f); err != nil {
		return Map{}, err
	}
	out := Map{name: m.name, fields: make(map[byte]Field, len(m.fields)+1)}
	for c, existing := range m.fields {
		if existing.Name == f.Name {
			continue
		}
		out.fields[c] = existing
	}
	out.fields[code] = f
	return out, nil
}

// Convert parses text according to the field bound to code. Unbound codes
// fail with ErrUnmapped; text that is empty or not a finite decimal number
// fails with ErrMalformedPayload. No value is ever defaulted.
func (m Map) Convert(code byte, text string) (Field, Value, error) {
	f, ok := m.fields[code]
	if !ok {
		return Field{}, Value{}, fmt.Errorf("%w: %q", ErrUnmapped, code)
	}
	v, err := ParseValue(f.Kind, text)
	if err != nil {
		return f, Value{}, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return f, v, nil
}

// ParseValue converts decimal text to kind. Surrounding whitespace is
// ignored.
func ParseValue(kind Kind, text string) (Value, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Value{}, fmt.Errorf("%w: empty text", ErrMalformedPayload)
	}
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%w: %q is not finite", ErrMalformedPayload, s)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return Value{Kind: KindInt, Int: i}, nil
	default:
		return Value{}, fmt.Errorf("unknown field kind %s", kind)
	}
}

type fileFormat struct {
	Name   string           `yaml:"name"`
	Fields map[string]Field `yaml:"fields"`
}

// Parse reads a field map from YAML:
//
//	name: board-rev-b
//	fields:
//	  "0": {name: altitude, kind: float}
//	  "6": {name: visible, kind: int}
func Parse(data []byte) (Map, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Map{}, fmt.Errorf("decode field map: %w", err)
	}
	if len(file.Fields) == 0 {
		return Map{}, fmt.Errorf("field map %q has no fields", file.Name)
	}
	fields := make(map[byte]Field, len(file.Fields))
	for key, f := range file.Fields {
		code, err := ParseCode(key)
		if err != nil {
			return Map{}, err
		}
		fields[code] = f
	}
	return New(file.Name, fields)
}

// Load reads a field map file.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, fmt.Errorf("read field map: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return Map{}, fmt.Errorf("%s: %w", path, err)
	}
	if m.name == "" {
		m.name = path
	}
	return m, nil
}

// MarshalYAML renders the map in the file format Parse reads.
func (m Map) MarshalYAML() (any, error) {
	file := fileFormat{Name: m.name, Fields: make(map[string]Field, len(m.fields))}
	for code, f := range m.fields {
		file.Fields[FormatCode(code)] = f
	}
	return file, nil
}

// ParseCode accepts a single character or a 0xNN hex byte.
func ParseCode(s string) (byte, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	if len(s) == 4 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		v, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid code %q: %w", s, err)
		}
		return byte(v), nil
	}
	return 0, fmt.Errorf("invalid code %q: want one character or 0xNN", s)
}

// FormatCode is the inverse of ParseCode.
func FormatCode(code byte) string {
	if code > 0x20 && code < 0x7F {
		return string(rune(code))
	}
	return fmt.Sprintf("0x%02X", code)
}
