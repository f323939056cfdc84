// Package scanner feeds codes read from a serial barcode scanner into the kiosk.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"go.bug.st/serial.v1"
	"go.uber.org/zap"
)

// maxCodeBytes bounds a single code. Longer lines are line noise and are dropped up to
// the next terminator.
const maxCodeBytes = 256

// Handler receives each code read.
type Handler func(ctx context.Context, code string) error

// Open opens a serial port in 8N1 mode.
func Open(port string, baudRate int) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ReadCodes reads CR or LF terminated codes from r and passes each non-empty one to fn.
// Handler errors and overlong lines are logged and reading continues. It returns nil on
// EOF or once ctx is done.
func ReadCodes(ctx context.Context, r io.Reader, fn Handler, logger *zap.Logger) error {
	lines := &lineSplitter{
		max: maxCodeBytes,
		onDrop: func(n int) {
			logger.Warn("dropped overlong scanner line", zap.Int("bytes", n), zap.Int("max", maxCodeBytes))
		},
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64), 2*maxCodeBytes)
	sc.Split(lines.split)

	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		if err := fn(ctx, code); err != nil {
			logger.Warn("scanned code rejected", zap.String("code", code), zap.Error(err))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// lineSplitter splits on \r, \n or \r\n; scanners differ in which suffix they send.
// A line longer than max is discarded up to its terminator and reported to onDrop.
type lineSplitter struct {
	max      int
	onDrop   func(n int)
	dropping bool
	dropped  int
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		s.finishDrop()
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		if s.dropping || len(data) > s.max {
			s.dropping = true
			s.dropped += len(data)
			return len(data), nil, nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}

	advance := i + 1
	if data[i] == '\r' && advance < len(data) && data[advance] == '\n' {
		advance++
	}
	if s.dropping || i > s.max {
		s.dropping = true
		s.dropped += i
		s.finishDrop()
		return advance, nil, nil
	}
	return advance, data[:i], nil
}

func (s *lineSplitter) finishDrop() {
	if !s.dropping {
		return
	}
	if s.onDrop != nil {
		s.onDrop(s.dropped)
	}
	s.dropping, s.dropped = false, 0
}

// Reader reads a serial scanner until its context ends.
type Reader struct {
	port     string
	baudRate int
	handler  Handler
	logger   *zap.Logger
	open     func(port string, baudRate int) (io.ReadCloser, error)
}

// NewReader builds a reader for the scanner on port.
func NewReader(port string, baudRate int, handler Handler, logger *zap.Logger) *Reader {
	return &Reader{
		port:     port,
		baudRate: baudRate,
		handler:  handler,
		logger:   logger,
		open:     Open,
	}
}

// Run opens the port and forwards codes to the handler until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	port, err := r.open(r.port, r.baudRate)
	if err != nil {
		return err
	}
	r.logger.Info("barcode scanner opened", zap.String("port", r.port), zap.Int("baud", r.baudRate))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		// Closing the port unblocks the pending read.
		_ = port.Close()
	}()

	err = ReadCodes(ctx, port, r.handler, r.logger)
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
