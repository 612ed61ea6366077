package nmea

import (
	"errors"
	"fmt"
	"net"
)

// DefaultUDPPort is the conventional listen port for NMEA over WiFi. Phone
// GPS forwarder apps broadcast here.
const DefaultUDPPort = 11123

// ErrReceiveOnly is returned when writing to a UDP NMEA source.
var ErrReceiveOnly = errors.New("udp nmea source is receive-only")

// UDPPort adapts a UDP listener into a Porter. Each datagram carries one or
// more newline-terminated sentences.
type UDPPort struct {
	conn *net.UDPConn
}

// ListenUDP opens a UDP listener on the given port. Port 0 binds an
// ephemeral port, reported by LocalAddr.
func ListenUDP(port int) (*UDPPort, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", port, err)
	}
	return &UDPPort{conn: conn}, nil
}

func (u *UDPPort) Read(p []byte) (int, error) {
	return u.conn.Read(p)
}

// Write always fails: datagram senders are anonymous, there is nobody to
// configure.
func (u *UDPPort) Write(p []byte) (int, error) {
	return 0, ErrReceiveOnly
}

func (u *UDPPort) Close() error {
	return u.conn.Close()
}

// LocalAddr reports the bound address.
func (u *UDPPort) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// NewUDPMux creates a Mux fed by an NMEA-over-UDP listener.
func NewUDPMux(port int) (*Mux[*UDPPort], error) {
	p, err := ListenUDP(port)
	if err != nil {
		return nil, err
	}
	return NewMux[*UDPPort](p), nil
}
