package nmea

import (
	"bytes"
	"errors"
	"sync"
)

var errPortClosed = errors.New("port closed")

// TestablePort is an in-memory Porter for tests. Reads drain bytes queued
// with AddReadData and writes are captured for inspection. Error fields,
// when set, are returned once by the corresponding call.
type TestablePort struct {
	// BlockReads parks an empty Read until data arrives or the port
	// closes, the way a real receiver idles between fixes. Without it an
	// empty port reads EOF.
	BlockReads bool

	WriteError error
	CloseError error

	mu      sync.Mutex
	more    *sync.Cond
	pending bytes.Buffer
	written bytes.Buffer
	closed  bool
}

// NewTestablePort creates an open port with nothing queued.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.more = sync.NewCond(&p.mu)
	return p
}

func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.BlockReads && !t.closed && t.pending.Len() == 0 {
		t.more.Wait()
	}
	if t.closed {
		return 0, errPortClosed
	}
	return t.pending.Read(p)
}

func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.written.Write(p)
}

// Close marks the port closed and wakes any blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.more.Broadcast()
	return t.CloseError
}

// AddReadData queues bytes for subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending.Write(data)
	t.more.Broadcast()
}

// Written returns a copy of everything written to the port.
func (t *TestablePort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.written.Bytes()...)
}

// Closed reports whether Close was called.
func (t *TestablePort) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// Reset clears both buffers, the scripted errors, and the closed flag.
func (t *TestablePort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending.Reset()
	t.written.Reset()
	t.closed = false
	t.WriteError = nil
	t.CloseError = nil
}
