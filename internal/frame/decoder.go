package frame

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// State is the decoder's position inside the wire format.
type State int

const (
	SeekingDelimiter State = iota
	ReadingCode
	ReadingPayload
)

func (s State) String() string {
	switch s {
	case SeekingDelimiter:
		return "seeking-delimiter"
	case ReadingCode:
		return "reading-code"
	case ReadingPayload:
		return "reading-payload"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Decoder assembles frames from a ByteSource. It owns its payload buffer but
// only borrows the source. One call at a time; a concurrent call fails with
// ErrBusy.
type Decoder struct {
	src     ByteSource
	backoff backoff.BackOff
	max     int
	log     *logrus.Entry

	state   State
	code    byte
	payload []byte
	retries int
	waited  bool

	busy atomic.Bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxPayload bounds the payload collected before the terminator.
// Non-positive values keep DefaultMaxPayload.
func WithMaxPayload(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.max = n
		}
	}
}

// WithBackOff sets the wait policy applied at every would-block result.
func WithBackOff(b backoff.BackOff) Option {
	return func(d *Decoder) {
		if b != nil {
			d.backoff = b
		}
	}
}

// WithLogger sets the entry frame diagnostics are logged to.
func WithLogger(entry *logrus.Entry) Option {
	return func(d *Decoder) {
		if entry != nil {
			d.log = entry
		}
	}
}

// DefaultBackOff returns the wait policy used when none is configured:
// exponential from 1ms to 50ms, never giving up.
func DefaultBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Millisecond),
		backoff.WithMaxInterval(50*time.Millisecond),
		backoff.WithMaxElapsedTime(0),
	)
}

// NewDecoder returns a decoder in SeekingDelimiter reading from src.
func NewDecoder(src ByteSource, opts ...Option) *Decoder {
	d := &Decoder{
		src: src,
		max: DefaultMaxPayload,
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.backoff == nil {
		d.backoff = DefaultBackOff()
	}
	d.payload = make([]byte, 0, d.max)
	return d
}

// State reports where the decoder currently is in the wire format.
func (d *Decoder) State() State { return d.state }

// MaxPayload reports the payload bound.
func (d *Decoder) MaxPayload() int { return d.max }

// Next pulls bytes until one frame completes and returns it.
//
// ErrFrameOverflow comes back together with the partial frame; the decoder
// has already resynchronized. When the byte past the bound is a delimiter
// the next call continues with that frame's code.
// Cancellation, a closed source and a stalled source discard the frame in
// flight and also leave the decoder in SeekingDelimiter.
func (d *Decoder) Next(ctx context.Context) (Frame, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return Frame{}, ErrBusy
	}
	defer d.busy.Store(false)

	if err := ctx.Err(); err != nil {
		d.reset()
		return Frame{}, cancelled(err)
	}
	for {
		b, err := d.src.ReadByte()
		if err != nil {
			if !errors.Is(err, ErrWouldBlock) {
				d.reset()
				return Frame{}, fmt.Errorf("%w: %w", ErrSourceClosed, err)
			}
			if d.state == ReadingPayload {
				d.retries++
			}
			if err := d.wait(ctx); err != nil {
				d.reset()
				return Frame{}, err
			}
			continue
		}
		d.waited = false

		switch d.state {
		case SeekingDelimiter:
			if b == Delimiter {
				d.state = ReadingCode
			}
		case ReadingCode:
			d.code = b
			d.state = ReadingPayload
		case ReadingPayload:
			if b == Terminator {
				f := d.take()
				d.log.Debugf("code %q: data %q (wait=%d)", f.Code, f.Text(), f.Retries)
				return f, nil
			}
			if len(d.payload) >= d.max {
				f := d.take()
				// the byte past the bound may open the next frame
				if b == Delimiter {
					d.state = ReadingCode
				}
				d.log.Warnf("code %q: payload exceeded %d bytes before terminator, resynchronizing", f.Code, d.max)
				return f, fmt.Errorf("%w: more than %d bytes", ErrFrameOverflow, d.max)
			}
			d.payload = append(d.payload, b)
		}
	}
}

// wait is the suspension point taken on every would-block result.
func (d *Decoder) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	// A streak of would-blocks starts from the initial interval.
	if !d.waited {
		d.backoff.Reset()
		d.waited = true
	}
	delay := d.backoff.NextBackOff()
	if delay == backoff.Stop {
		return ErrSourceStalled
	}
	if delay <= 0 {
		runtime.Gosched()
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// take hands out the collected frame and rearms the decoder.
func (d *Decoder) take() Frame {
	f := Frame{
		Code:    d.code,
		Payload: append([]byte(nil), d.payload...),
		Retries: d.retries,
	}
	d.reset()
	return f
}

func (d *Decoder) reset() {
	d.state = SeekingDelimiter
	d.code = 0
	d.payload = d.payload[:0]
	d.retries = 0
	d.waited = false
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
