package transport_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"tc2100/pkg/transport"
)

func TestReaderForwardsChunks(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan []byte, 4)
	transport.StartReader(ctx, "/dev/null", out,
		transport.WithOpener(func(string, int) (io.ReadCloser, error) {
			return pr, nil
		}),
	)

	if _, err := pw.Write([]byte{0x65, 0x14, 0x00}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := pw.Write([]byte{0x0D, 0x0A}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	first := readChunk(t, out)
	second := readChunk(t, out)

	if len(first) != 3 || first[0] != 0x65 {
		t.Fatalf("unexpected first chunk: % x", first)
	}
	if len(second) != 2 || second[1] != 0x0A {
		t.Fatalf("unexpected second chunk: % x", second)
	}
}

func TestReaderReopensAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opens := make(chan struct{}, 8)
	errs := make(chan error, 8)

	firstReader, firstWriter := io.Pipe()
	firstUsed := false

	out := make(chan []byte, 4)
	transport.StartReader(ctx, "COM1", out,
		transport.WithReconnectInterval(5*time.Millisecond),
		transport.WithErrorHandler(func(err error) { errs <- err }),
		transport.WithOpener(func(string, int) (io.ReadCloser, error) {
			opens <- struct{}{}
			if !firstUsed {
				firstUsed = true
				return firstReader, nil
			}
			pr, pw := io.Pipe()
			go func() {
				_, _ = pw.Write([]byte{0x42})
			}()
			return pr, nil
		}),
	)

	waitSignal(t, opens, "first open")
	_ = firstWriter.CloseWithError(errors.New("device unplugged"))

	waitSignal(t, opens, "reopen")
	chunk := readChunk(t, out)
	if len(chunk) != 1 || chunk[0] != 0x42 {
		t.Fatalf("unexpected chunk after reopen: % x", chunk)
	}

	select {
	case <-errs:
	case <-time.After(1 * time.Second):
		t.Fatalf("read error was not reported")
	}
}

func TestReaderRetriesFailedOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	opened := make(chan struct{}, 1)

	out := make(chan []byte, 1)
	transport.StartReader(ctx, "COM1", out,
		transport.WithReconnectInterval(time.Millisecond),
		transport.WithOpener(func(string, int) (io.ReadCloser, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("port busy")
			}
			pr, pw := io.Pipe()
			go func() {
				_, _ = pw.Write([]byte{0x01})
			}()
			select {
			case opened <- struct{}{}:
			default:
			}
			return pr, nil
		}),
	)

	select {
	case <-opened:
	case <-time.After(1 * time.Second):
		t.Fatalf("reader never recovered from failed opens")
	}
	chunk := readChunk(t, out)
	if len(chunk) != 1 || chunk[0] != 0x01 {
		t.Fatalf("unexpected chunk: % x", chunk)
	}
}

func readChunk(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case chunk := <-ch:
		return chunk
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for chunk")
		return nil
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}
