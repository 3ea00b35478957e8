package frame

import "errors"

// ByteSource hands out at most one byte per call and never blocks.
//
// ReadByte returns ErrWouldBlock when no data is available yet. Any other
// error (io.EOF included) means the source is closed for good. A
// *bytes.Reader is a valid ByteSource for captured streams.
type ByteSource interface {
	ReadByte() (byte, error)
}

var (
	ErrWouldBlock    = errors.New("no data available yet")
	ErrSourceClosed  = errors.New("byte source closed")
	ErrSourceStalled = errors.New("byte source stalled")
	ErrFrameOverflow = errors.New("frame payload overflow")
	ErrCancelled     = errors.New("decode cancelled")
	ErrBusy          = errors.New("decoder already in use")
)
