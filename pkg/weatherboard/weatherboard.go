package weatherboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/fieldmap"
	"github.com/d21d3q/goweatherboard/internal/frame"
)

// ByteSource hands out one byte per call; see the frame package contract.
type ByteSource = frame.ByteSource

// State is the decoder's position inside the wire format.
type State = frame.State

const (
	SeekingDelimiter = frame.SeekingDelimiter
	ReadingCode      = frame.ReadingCode
	ReadingPayload   = frame.ReadingPayload
)

type (
	FieldMap = fieldmap.Map
	Field    = fieldmap.Field
	Kind     = fieldmap.Kind
)

const (
	KindFloat = fieldmap.KindFloat
	KindInt   = fieldmap.KindInt
)

var (
	ErrWouldBlock       = frame.ErrWouldBlock
	ErrSourceClosed     = frame.ErrSourceClosed
	ErrSourceStalled    = frame.ErrSourceStalled
	ErrFrameOverflow    = frame.ErrFrameOverflow
	ErrCancelled        = frame.ErrCancelled
	ErrBusy             = frame.ErrBusy
	ErrUnmapped         = fieldmap.ErrUnmapped
	ErrMalformedPayload = fieldmap.ErrMalformedPayload
)

// FrameError is a per-frame failure. The cycle carries on past it.
type FrameError struct {
	Code byte
	Raw  string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %q (%q): %v", e.Code, e.Raw, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Reading is one decoded frame. Err is a *FrameError when the frame
// overflowed, its text did not parse, or its code is not in the field map.
type Reading struct {
	Code    byte
	Field   string
	Kind    Kind
	Float   float64
	Int     int64
	Raw     string
	Retries int
	Err     error
}

// OK reports whether the reading carries a value.
func (r Reading) OK() bool { return r.Err == nil }

// Value returns the parsed number as float64 or int64, nil on failure.
func (r Reading) Value() any {
	if !r.OK() {
		return nil
	}
	if r.Kind == KindInt {
		return r.Int
	}
	return r.Float
}

// Status classifies the reading: ok, unmapped, malformed or overflow.
func (r Reading) Status() string {
	switch {
	case r.Err == nil:
		return "ok"
	case errors.Is(r.Err, ErrUnmapped):
		return "unmapped"
	case errors.Is(r.Err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(r.Err, ErrFrameOverflow):
		return "overflow"
	default:
		return "error"
	}
}

// String renders the reading as a single JSON object.
func (r Reading) String() string {
	summary := map[string]any{
		"code":    fieldmap.FormatCode(r.Code),
		"raw":     r.Raw,
		"status":  r.Status(),
		"retries": r.Retries,
	}
	if r.Field != "" {
		summary["field"] = r.Field
	}
	if r.OK() {
		summary["value"] = r.Value()
	} else {
		summary["error"] = r.Err.Error()
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Sprintf("code %q raw %q (marshal error: %v)", r.Code, r.Raw, err)
	}
	return string(data)
}

// Decoder turns a byte stream into Readings using a field map.
type Decoder struct {
	frames *frame.Decoder
	fields fieldmap.Map
	log    *logrus.Entry
	busy   atomic.Bool
}

// NewDecoder builds a decoder over src. The source is borrowed; closing it
// stays with the caller.
func NewDecoder(src ByteSource, opts Options) (*Decoder, error) {
	if src == nil {
		return nil, errors.New("nil byte source")
	}
	fields, frameOpts, log, err := opts.toInternal()
	if err != nil {
		return nil, err
	}
	return &Decoder{
		frames: frame.NewDecoder(src, frameOpts...),
		fields: fields,
		log:    log,
	}, nil
}

// FieldMap returns the map readings are converted with.
func (d *Decoder) FieldMap() FieldMap { return d.fields }

// State reports where the underlying frame decoder is in the wire format.
func (d *Decoder) State() State { return d.frames.State() }

// DecodeOne decodes the next frame. Frame-level failures come back inside
// Reading.Err; the error return is reserved for ErrSourceClosed,
// ErrCancelled, ErrSourceStalled and ErrBusy.
func (d *Decoder) DecodeOne(ctx context.Context) (Reading, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return Reading{}, ErrBusy
	}
	defer d.busy.Store(false)
	return d.decodeOne(ctx)
}

// DecodeCycle decodes exactly n frames, failed ones included, in arrival
// order. When it stops early the readings completed so far are returned
// with the error; the frame in flight is dropped and the decoder starts the
// next call seeking a delimiter.
func (d *Decoder) DecodeCycle(ctx context.Context, n int) ([]Reading, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative frame count %d", n)
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer d.busy.Store(false)

	readings := make([]Reading, 0, n)
	for len(readings) < n {
		r, err := d.decodeOne(ctx)
		if err != nil {
			return readings, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (d *Decoder) decodeOne(ctx context.Context) (Reading, error) {
	f, err := d.frames.Next(ctx)
	if err != nil {
		if !errors.Is(err, ErrFrameOverflow) {
			return Reading{}, err
		}
		raw := string(f.Payload)
		return Reading{
			Code:    f.Code,
			Raw:     raw,
			Retries: f.Retries,
			Err:     &FrameError{Code: f.Code, Raw: raw, Err: err},
		}, nil
	}

	r := Reading{Code: f.Code, Raw: f.Text(), Retries: f.Retries}
	field, v, err := d.fields.Convert(f.Code, r.Raw)
	r.Field, r.Kind = field.Name, field.Kind
	if err != nil {
		if errors.Is(err, ErrUnmapped) {
			d.log.Warnf("unknown code %q: data %q", f.Code, r.Raw)
		} else {
			d.log.Warnf("code %q: %v", f.Code, err)
		}
		r.Err = &FrameError{Code: f.Code, Raw: r.Raw, Err: err}
		return r, nil
	}
	r.Float, r.Int = v.Float, v.Int
	return r, nil
}
