package serialport

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"

	"github.com/d21d3q/goweatherboard/internal/config"
	"github.com/d21d3q/goweatherboard/internal/frame"
)

type fakeConn struct {
	reads   []readResult
	flushed bool
	closed  bool
}

type readResult struct {
	b   byte
	n   int
	err error
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		return 0, io.ErrClosedPipe
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	if r.n == 1 {
		p[0] = r.b
	}
	return r.n, r.err
}

func (f *fakeConn) Flush() error { f.flushed = true; return nil }
func (f *fakeConn) Close() error { f.closed = true; return nil }

func stubOpen(t *testing.T, fn func(*serial.Config) (conn, error)) {
	t.Helper()
	orig := openPort
	openPort = fn
	t.Cleanup(func() { openPort = orig })
}

func TestOpenFallsBackThroughDevices(t *testing.T) {
	fake := &fakeConn{}
	var tried []string
	stubOpen(t, func(c *serial.Config) (conn, error) {
		tried = append(tried, c.Name)
		require.Equal(t, 500000, c.Baud)
		require.Equal(t, byte(8), c.Size)
		if c.Name != "/dev/ttyUSB2" {
			return nil, errors.New("no such file or directory")
		}
		return fake, nil
	})
	logger, hook := test.NewNullLogger()

	p, err := Open(config.Default().Serial, logrus.NewEntry(logger))
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB2", p.Name())
	require.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"}, tried)
	require.True(t, fake.flushed)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	require.Equal(t, 2, warnings)

	require.NoError(t, p.Close())
	require.True(t, fake.closed)
}

func TestOpenGivesUp(t *testing.T) {
	stubOpen(t, func(c *serial.Config) (conn, error) {
		return nil, errors.New("permission denied")
	})
	logger, hook := test.NewNullLogger()

	_, err := Open(config.Default().Serial, logrus.NewEntry(logger))
	require.ErrorContains(t, err, "/dev/ttyUSB1: permission denied")
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	_, err = Open(config.SerialConfig{}, logrus.NewEntry(logger))
	require.Error(t, err)
}

func TestReadByteMapsTimeouts(t *testing.T) {
	broken := errors.New("input/output error")
	p := &Port{name: "fake", conn: &fakeConn{reads: []readResult{
		{b: 'w', n: 1},
		{n: 0, err: io.EOF},
		{n: 0},
		{b: '0', n: 1},
		{n: 0, err: broken},
	}}}

	b, err := p.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('w'), b)

	_, err = p.ReadByte()
	require.ErrorIs(t, err, frame.ErrWouldBlock)
	_, err = p.ReadByte()
	require.ErrorIs(t, err, frame.ErrWouldBlock)

	b, err = p.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('0'), b)

	_, err = p.ReadByte()
	require.ErrorIs(t, err, broken)
}
