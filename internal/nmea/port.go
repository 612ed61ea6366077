package nmea

import (
	"io"
)

// Porter is the minimal interface for a GPS byte stream. Serial ports, UDP
// listeners, and in-memory test ports all satisfy it.
type Porter interface {
	io.ReadWriter
	io.Closer
}
