package nmea

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMux(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	if mux == nil {
		t.Fatal("NewMux returned nil")
	}
	if mux.port != port {
		t.Error("Mux port not set correctly")
	}
	if mux.subscribers == nil {
		t.Error("Mux subscribers map not initialized")
	}
}

func TestMuxSubscribe(t *testing.T) {
	mux := NewMux[*TestablePort](NewTestablePort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()

	if id1 == "" || id2 == "" {
		t.Error("subscription returned empty ID")
	}
	if id1 == id2 {
		t.Error("subscription IDs should be unique")
	}
	if ch1 == nil || ch2 == nil {
		t.Error("subscription returned nil channel")
	}
	if cap(ch1) != subscriberBuffer {
		t.Errorf("channel capacity = %d, want %d", cap(ch1), subscriberBuffer)
	}

	mux.subscriberMu.Lock()
	if len(mux.subscribers) != 2 {
		t.Errorf("expected 2 subscribers, got %d", len(mux.subscribers))
	}
	mux.subscriberMu.Unlock()
}

func TestMuxUnsubscribe(t *testing.T) {
	mux := NewMux[*TestablePort](NewTestablePort())

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}

	mux.subscriberMu.Lock()
	if len(mux.subscribers) != 0 {
		t.Errorf("expected 0 subscribers, got %d", len(mux.subscribers))
	}
	mux.subscriberMu.Unlock()

	// Unknown IDs are a no-op.
	mux.Unsubscribe("non-existent-id")
}

func TestMuxSendCommand(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"bare payload is framed", "PMTK220,100", "$PMTK220,100*2F\r\n"},
		{"framed sentence passes through", "$PMTK251,38400*27", "$PMTK251,38400*27\r\n"},
		{"trailing newline is normalized", "PMTK220,100\n", "$PMTK220,100*2F\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port.Reset()
			if err := mux.SendCommand(tt.command); err != nil {
				t.Fatalf("SendCommand returned error: %v", err)
			}
			if got := string(port.Written()); got != tt.want {
				t.Errorf("wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMuxSendCommandWriteError(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	port.WriteError = errors.New("write failed")

	if err := mux.SendCommand("PMTK220,100"); err == nil {
		t.Error("expected error when write fails")
	}
}

func TestMuxSendCommandPartialWrite(t *testing.T) {
	mux := NewMux[*partialWritePort](&partialWritePort{maxWrite: 3})

	err := mux.SendCommand("PMTK220,100")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed for partial write, got %v", err)
	}
}

func TestMuxMonitorFansOut(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true
	mux := NewMux[*TestablePort](port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- mux.Monitor(context.Background())
	}()

	port.AddReadData([]byte(canonicalGGA + "\r\n" + canonicalRMC + "\r\n"))

	for _, ch := range []chan string{ch1, ch2} {
		for _, want := range []string{canonicalGGA, canonicalRMC} {
			select {
			case line := <-ch:
				if line != want {
					t.Errorf("received %q, want %q", line, want)
				}
			case <-time.After(1 * time.Second):
				t.Fatal("timeout waiting for sentence")
			}
		}
	}

	if err := mux.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit after Close")
	}
}

func TestMuxMonitorContextCancel(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true
	mux := NewMux[*TestablePort](port)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- mux.Monitor(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit after cancel")
	}

	mux.Close()
}

func TestMuxMonitorScanError(t *testing.T) {
	mux := NewMux[*errorAfterPort](&errorAfterPort{line: canonicalGGA + "\n"})

	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- mux.Monitor(context.Background())
	}()

	select {
	case line := <-ch:
		if line != canonicalGGA {
			t.Errorf("received %q, want %q", line, canonicalGGA)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for first line")
	}

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "device unplugged") {
			t.Errorf("Monitor returned %v, want read error", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not surface the read error")
	}
}

func TestMuxMonitorEOF(t *testing.T) {
	mux := NewMux[*eofPort](&eofPort{data: canonicalGGA + "\n"})

	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- mux.Monitor(context.Background())
	}()

	select {
	case line := <-ch:
		if line != canonicalGGA {
			t.Errorf("received %q, want %q", line, canonicalGGA)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for line")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor returned %v on clean EOF, want nil", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit on EOF")
	}
}

func TestMuxClose(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	if _, ok := <-ch1; ok {
		t.Error("expected channel 1 to be closed")
	}
	if _, ok := <-ch2; ok {
		t.Error("expected channel 2 to be closed")
	}

	mux.subscriberMu.Lock()
	if len(mux.subscribers) != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", len(mux.subscribers))
	}
	mux.subscriberMu.Unlock()

	if !port.Closed() {
		t.Error("expected underlying port to be closed")
	}
}

func TestMuxClosePortError(t *testing.T) {
	port := NewTestablePort()
	port.CloseError = errors.New("busy")
	mux := NewMux[*TestablePort](port)

	if err := mux.Close(); err == nil || !strings.Contains(err.Error(), "busy") {
		t.Errorf("Close = %v, want port close error", err)
	}
}

func TestRandomID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := randomID()
		if len(id) != 16 { // 8 bytes hex encoded = 16 chars
			t.Errorf("expected ID length 16, got %d", len(id))
		}
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestMuxAttachAdminRoutes(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	// Debug routes sit behind tsweb's access checks, so anything other than
	// 404 proves registration.
	t.Run("gps-send registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/debug/gps-send", strings.NewReader("command=PMTK220,100"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Error("route /debug/gps-send should be registered, got 404")
		}
	})

	t.Run("gps-tail registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/gps-tail", nil)
		w := httptest.NewRecorder()
		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Error("route /debug/gps-tail should be registered, got 404")
		}
	})
}

func TestMuxTailSSE(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[*TestablePort](port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ts := httptest.NewServer(httpMux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/debug/gps-tail", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected text/event-stream, got %s", ct)
	}

	reader := newSSELineReader(resp.Body)
	if line := reader.next(t); !strings.HasPrefix(line, ": ping") {
		t.Errorf("expected initial ping, got %q", line)
	}

	// Push a sentence through the subscriber fan-out directly.
	mux.subscriberMu.Lock()
	for _, ch := range mux.subscribers {
		select {
		case ch <- canonicalGGA:
		default:
		}
	}
	mux.subscriberMu.Unlock()

	gotData := false
	for i := 0; i < 5; i++ {
		line := reader.next(t)
		if strings.Contains(line, canonicalGGA) {
			gotData = true
			break
		}
	}
	if !gotData {
		t.Error("did not receive SSE data event")
	}
}

// sseLineReader reads newline-delimited SSE payloads with a timeout so a
// stuck stream fails the test instead of hanging it.
type sseLineReader struct {
	lines chan string
}

func newSSELineReader(body io.Reader) *sseLineReader {
	r := &sseLineReader{lines: make(chan string, 16)}
	go func() {
		defer close(r.lines)
		buf := make([]byte, 1)
		var line []byte
		for {
			if _, err := body.Read(buf); err != nil {
				return
			}
			if buf[0] == '\n' {
				r.lines <- string(line)
				line = nil
				continue
			}
			line = append(line, buf[0])
		}
	}()
	return r
}

func (r *sseLineReader) next(t *testing.T) string {
	t.Helper()
	for {
		select {
		case line, ok := <-r.lines:
			if !ok {
				t.Fatal("SSE stream closed early")
			}
			if line == "" {
				continue
			}
			return line
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for SSE line")
		}
	}
}

// errorAfterPort yields one line and then fails every read.
type errorAfterPort struct {
	line  string
	reads int
}

func (p *errorAfterPort) Read(buf []byte) (int, error) {
	p.reads++
	if p.reads == 1 {
		return copy(buf, p.line), nil
	}
	return 0, errors.New("device unplugged")
}

func (p *errorAfterPort) Write(data []byte) (int, error) { return len(data), nil }
func (p *errorAfterPort) Close() error                   { return nil }

// eofPort yields its data once and then reports a clean end of stream.
type eofPort struct {
	data string
	done bool
}

func (p *eofPort) Read(buf []byte) (int, error) {
	if p.done {
		return 0, io.EOF
	}
	p.done = true
	return copy(buf, p.data), nil
}

func (p *eofPort) Write(data []byte) (int, error) { return len(data), nil }
func (p *eofPort) Close() error                   { return nil }

// partialWritePort only accepts a limited number of bytes per write.
type partialWritePort struct {
	maxWrite int
	written  []byte
}

func (p *partialWritePort) Read(buf []byte) (int, error) { return 0, io.EOF }

func (p *partialWritePort) Write(data []byte) (int, error) {
	if p.maxWrite > 0 && len(data) > p.maxWrite {
		p.written = append(p.written, data[:p.maxWrite]...)
		return p.maxWrite, nil
	}
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *partialWritePort) Close() error { return nil }
