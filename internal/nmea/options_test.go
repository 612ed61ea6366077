package nmea

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptionsNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if opts.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", opts.BaudRate)
	}
	if opts.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", opts.DataBits)
	}
	if opts.StopBits != 1 {
		t.Errorf("StopBits = %d, want 1", opts.StopBits)
	}
	if opts.Parity != "N" {
		t.Errorf("Parity = %q, want N", opts.Parity)
	}
}

func TestPortOptionsNormalizeParity(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "N", false},
		{"n", "N", false},
		{"none", "N", false},
		{"E", "E", false},
		{"even", "E", false},
		{"O", "O", false},
		{"odd", "O", false},
		{" N ", "N", false},
		{"mark", "", true},
	}
	for _, tt := range tests {
		opts, err := PortOptions{Parity: tt.in}.Normalize()
		if tt.wantErr {
			if err == nil {
				t.Errorf("Normalize(parity=%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(parity=%q) returned error: %v", tt.in, err)
			continue
		}
		if opts.Parity != tt.want {
			t.Errorf("Normalize(parity=%q) = %q, want %q", tt.in, opts.Parity, tt.want)
		}
	}
}

func TestPortOptionsNormalizeInvalid(t *testing.T) {
	if _, err := (PortOptions{DataBits: 9}).Normalize(); err == nil {
		t.Error("expected error for 9 data bits")
	}
	if _, err := (PortOptions{DataBits: 4}).Normalize(); err == nil {
		t.Error("expected error for 4 data bits")
	}
	if _, err := (PortOptions{StopBits: 3}).Normalize(); err == nil {
		t.Error("expected error for 3 stop bits")
	}
}

func TestPortOptionsEqual(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"}) {
		t.Error("zero options should equal explicit defaults")
	}
	if (PortOptions{}).Equal(PortOptions{BaudRate: 38400}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "mark"}).Equal(PortOptions{Parity: "mark"}) {
		t.Error("invalid options should never compare equal")
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 38400, StopBits: 2, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode returned error: %v", err)
	}
	if mode.BaudRate != 38400 {
		t.Errorf("BaudRate = %d, want 38400", mode.BaudRate)
	}
	if mode.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", mode.DataBits)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode returned error: %v", err)
	}
	if mode.BaudRate != 9600 || mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Errorf("default mode = %+v, want 9600 8N1", mode)
	}

	if _, err := (PortOptions{DataBits: 9}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}
