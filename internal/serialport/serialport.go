package serialport

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/d21d3q/goweatherboard/internal/config"
	"github.com/d21d3q/goweatherboard/internal/frame"
)

// conn is the part of *serial.Port the adapter relies on.
type conn interface {
	io.ReadCloser
	Flush() error
}

var openPort = func(c *serial.Config) (conn, error) {
	return serial.OpenPort(c)
}

// Port adapts a raw-mode serial device to the frame.ByteSource contract.
type Port struct {
	name string
	conn conn
	buf  [1]byte
}

// Open tries each configured device in order and returns the first one that
// opens. The tty is 8N1 with flow control off; pending input is discarded.
func Open(cfg config.SerialConfig, log *logrus.Entry) (*Port, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.New("no serial devices configured")
	}
	var errs []error
	for _, name := range cfg.Devices {
		c, err := openPort(&serial.Config{
			Name:        name,
			Baud:        cfg.Baud,
			ReadTimeout: cfg.ReadTimeout,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
		})
		if err != nil {
			log.WithField("device", name).Warnf("open failed: %v", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := c.Flush(); err != nil {
			log.WithField("device", name).Warnf("flush input: %v", err)
		}
		log.WithField("device", name).Infof("opened at %d baud", cfg.Baud)
		return &Port{name: name, conn: c}, nil
	}
	log.Errorf("no weather board found on %v", cfg.Devices)
	return nil, fmt.Errorf("open serial device: %w", errors.Join(errs...))
}

// Name returns the device path that was opened.
func (p *Port) Name() string { return p.name }

// ReadByte returns frame.ErrWouldBlock when the read timeout passes without
// data. The tty reports that as a zero-length read, which os.File turns
// into io.EOF.
func (p *Port) ReadByte() (byte, error) {
	n, err := p.conn.Read(p.buf[:])
	if n == 1 {
		return p.buf[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, frame.ErrWouldBlock
	}
	return 0, err
}

// Close releases the device.
func (p *Port) Close() error { return p.conn.Close() }
