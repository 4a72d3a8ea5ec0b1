package filterwheel

import (
	"errors"
	"sync"
)

// Sim is an in-memory Controller used by tests and dev-mode services.
type Sim struct {
	mu sync.Mutex

	// Positions is the number of positions the simulated wheel reports.
	Positions int
	// Err, when set, is returned by every vendor command.
	Err error

	position int
	commands int
	closed   bool
}

// NewSim creates a simulated 12-position wheel at position 1.
func NewSim() *Sim {
	return &Sim{Positions: 12, position: 1}
}

func (s *Sim) begin() error {
	if s.closed {
		return errors.New("controller closed")
	}
	if s.Err != nil {
		return s.Err
	}
	s.commands++
	return nil
}

// CommandCount reports how many vendor commands the device has seen.
func (s *Sim) CommandCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

// PositionCount returns the configured number of positions.
func (s *Sim) PositionCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	return s.Positions, nil
}

// Position returns the current position.
func (s *Sim) Position() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return 0, err
	}
	return s.position, nil
}

// SetPosition moves the simulated wheel.
func (s *Sim) SetPosition(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(); err != nil {
		return err
	}
	s.position = position
	return nil
}

// Close marks the controller closed.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
