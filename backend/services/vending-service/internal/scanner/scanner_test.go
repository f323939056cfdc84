package scanner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type collector struct {
	codes []string
}

func (c *collector) handle(_ context.Context, code string) error {
	c.codes = append(c.codes, code)
	if code == "BAD" {
		return errors.New("unknown barcode")
	}
	return nil
}

func TestReadCodes(t *testing.T) {
	input := "P-1\r\nP-2\n\n  A-1 \rBAD\nP-3"
	var c collector

	err := ReadCodes(context.Background(), strings.NewReader(input), c.handle, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"P-1", "P-2", "A-1", "BAD", "P-3"}, c.codes)
}

func TestReadCodesDropsOverlongLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		dropped int
	}{
		{"noise then code", strings.Repeat("x", 300) + "\nP-ada\n", []string{"P-ada"}, 1},
		{"noise longer than buffer", "P-1\r\n" + strings.Repeat("x", maxCodeBytes*5) + "\r\nP-2", []string{"P-1", "P-2"}, 1},
		{"runaway at end", "P-1\n" + strings.Repeat("x", maxCodeBytes*2), []string{"P-1"}, 1},
		{"longest accepted code", strings.Repeat("y", maxCodeBytes) + "\n", []string{strings.Repeat("y", maxCodeBytes)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			var c collector
			err := ReadCodes(context.Background(), strings.NewReader(tt.input), c.handle, zap.New(core))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.codes)
			assert.Equal(t, tt.dropped, logs.FilterMessage("dropped overlong scanner line").Len())
		})
	}
}

func TestReaderStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	got := make(chan string, 4)
	r := NewReader("/dev/null", 9600, func(_ context.Context, code string) error {
		got <- code
		return nil
	}, zap.NewNop())
	r.open = func(string, int) (io.ReadCloser, error) { return pr, nil }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	_, err := pw.Write([]byte("P-1\n"))
	require.NoError(t, err)
	select {
	case code := <-got:
		assert.Equal(t, "P-1", code)
	case <-time.After(time.Second):
		t.Fatal("code not delivered")
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
}

func TestReaderOpenError(t *testing.T) {
	r := NewReader("/dev/ttyUSB9", 9600, nil, zap.NewNop())
	r.open = func(string, int) (io.ReadCloser, error) { return nil, errors.New("no such port") }
	assert.Error(t, r.Run(context.Background()))
}
