package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// SimSource produces synthetic frames for bench runs and tests. Error fields
// script the next failure of each call; upstream status is a switch.
type SimSource struct {
	mu    sync.Mutex
	clock timeutil.Clock

	OpenErr  error
	ReadErr  error
	CloseErr error
	ProbeErr error

	// NotStreaming simulates the camera being switched off upstream.
	NotStreaming bool

	open   bool
	opens  int
	closes int
	seq    int
}

// NewSimSource creates a simulated source. A nil clock uses the real clock.
func NewSimSource(clock timeutil.Clock) *SimSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SimSource{clock: clock}
}

func (s *SimSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.open = true
	s.opens++
	return nil
}

func (s *SimSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return Frame{}, s.ReadErr
	}
	if !s.open {
		return Frame{}, errors.New("source not open")
	}
	s.seq++
	return Frame{
		Data: []byte(fmt.Sprintf("frame-%06d", s.seq)),
		At:   s.clock.Now(),
	}, nil
}

func (s *SimSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	s.closes++
	return s.CloseErr
}

func (s *SimSource) Streaming(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProbeErr != nil {
		return false, s.ProbeErr
	}
	return !s.NotStreaming, nil
}

// IsOpen reports whether the source is currently open.
func (s *SimSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// OpenCount returns how many times Open succeeded.
func (s *SimSource) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// CloseCount returns how many times Close closed an open source.
func (s *SimSource) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
