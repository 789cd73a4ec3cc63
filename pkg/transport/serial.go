// Package transport reads raw bytes from the meter's serial port and
// hands them to the framing pipeline. It owns reconnection: a meter that
// is unplugged and plugged back in resumes without restarting the
// program.
package transport

import (
	"context"
	"io"
	"time"

	"go.bug.st/serial"
)

// Opener opens the serial device. Tests substitute an in-memory pipe.
type Opener func(port string, baud int) (io.ReadCloser, error)

type Reader struct {
	port         string
	baud         int
	out          chan<- []byte
	reconnect    time.Duration
	reconnectMax time.Duration
	bufSize      int
	readTimeout  time.Duration
	errorHandler func(error)
	open         Opener
}

type Option func(*Reader)

func WithBaudRate(baud int) Option {
	return func(r *Reader) {
		if baud > 0 {
			r.baud = baud
		}
	}
}

func WithReconnectInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.reconnect = d
		}
	}
}

func WithReconnectMax(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.reconnectMax = d
		}
	}
}

func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.readTimeout = d
		}
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(r *Reader) {
		if fn != nil {
			r.errorHandler = fn
		}
	}
}

func WithOpener(fn Opener) Option {
	return func(r *Reader) {
		if fn != nil {
			r.open = fn
		}
	}
}

// StartReader opens port and copies every read chunk onto out until ctx
// ends. Chunks arrive exactly as the driver returns them; message
// framing happens downstream.
func StartReader(ctx context.Context, port string, out chan<- []byte, opts ...Option) *Reader {
	r := &Reader{
		port:         port,
		baud:         9600,
		out:          out,
		reconnect:    1 * time.Second,
		reconnectMax: 30 * time.Second,
		bufSize:      4096,
	}
	r.open = r.openSerial
	for _, opt := range opts {
		opt(r)
	}
	go r.run(ctx)
	return r
}

func (r *Reader) openSerial(port string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if r.readTimeout > 0 {
		if err := p.SetReadTimeout(r.readTimeout); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

func (r *Reader) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := r.open(r.port, r.baud)
		if err != nil {
			r.handleError(err)
			attempt++
			r.sleepBackoff(ctx, attempt)
			continue
		}

		attempt = 0
		err = r.handlePort(ctx, port)
		_ = port.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil && err != io.EOF {
			r.handleError(err)
		}
		r.sleepBackoff(ctx, 1)
	}
}

func (r *Reader) handlePort(ctx context.Context, port io.ReadCloser) error {
	chunk := make([]byte, r.bufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := port.Read(chunk)
		if err != nil {
			return err
		}
		if n == 0 {
			// Read timeout expired with no data.
			continue
		}
		payload := append([]byte(nil), chunk[:n]...)
		select {
		case r.out <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reader) sleepBackoff(ctx context.Context, attempt int) {
	wait := min(r.reconnect*time.Duration(attempt), r.reconnectMax)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}

func (r *Reader) handleError(err error) {
	if r.errorHandler != nil {
		r.errorHandler(err)
	}
}
