package monochromator

import (
	"errors"
	"fmt"
	"sync"
)

// SimController is an in-memory Controller used by tests and dev-mode
// services.
type SimController struct {
	mu sync.Mutex

	// EncoderOffset is added to the stored wavelength on read to simulate
	// the encoder reporting a slightly different value than requested.
	EncoderOffset float64
	// SlitDrift, when set, makes a slit report one micron less than the
	// last commanded width, simulating a faulty drive.
	SlitDrift bool
	// Err, when set, is returned by every vendor command.
	Err error

	wavelength float64
	grating    int
	filter     int
	slits      map[Slit]int
	blaze      map[int]string
	density    map[int]int
	commands   int
	closed     bool
}

// NewSimController creates a simulated monochromator with grating 1 and
// filter 1 selected and both slits at 100 microns.
func NewSimController() *SimController {
	return &SimController{
		grating: 1,
		filter:  1,
		slits:   map[Slit]int{FrontEntranceSlit: 100, FrontExitSlit: 100},
		blaze:   map[int]string{1: "300NM", 2: "500NM", 3: "750NM"},
		density: map[int]int{1: 1200, 2: 1200, 3: 600},
	}
}

func (c *SimController) begin() error {
	if c.closed {
		return errors.New("controller closed")
	}
	if c.Err != nil {
		return c.Err
	}
	c.commands++
	return nil
}

// CommandCount reports how many vendor commands the device has seen.
func (c *SimController) CommandCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commands
}

// Wavelength returns the simulated encoder wavelength.
func (c *SimController) Wavelength() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return 0, err
	}
	return c.wavelength + c.EncoderOffset, nil
}

// SetWavelength stores the requested wavelength.
func (c *SimController) SetWavelength(nm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.wavelength = nm
	return nil
}

// LastWavelength returns the wavelength most recently transmitted to the
// device, without the encoder offset.
func (c *SimController) LastWavelength() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wavelength
}

// Grating returns the selected grating position.
func (c *SimController) Grating() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return 0, err
	}
	return c.grating, nil
}

// SetGrating selects a grating position.
func (c *SimController) SetGrating(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.grating = position
	return nil
}

// GratingBlaze returns the blaze description of a grating.
func (c *SimController) GratingBlaze(position int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return "", err
	}
	blaze, ok := c.blaze[position]
	if !ok {
		return "", fmt.Errorf("no grating at position %d", position)
	}
	return blaze, nil
}

// GratingDensity returns the groove density of a grating in grooves/mm.
func (c *SimController) GratingDensity(position int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return 0, err
	}
	density, ok := c.density[position]
	if !ok {
		return 0, fmt.Errorf("no grating at position %d", position)
	}
	return density, nil
}

// FilterPosition returns the filter wheel position.
func (c *SimController) FilterPosition() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return 0, err
	}
	return c.filter, nil
}

// SetFilterPosition moves the filter wheel.
func (c *SimController) SetFilterPosition(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.filter = position
	return nil
}

// HomeFilterWheel homes the filter wheel to position 1.
func (c *SimController) HomeFilterWheel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.filter = 1
	return nil
}

// SlitWidth returns the width of a slit in microns.
func (c *SimController) SlitWidth(slit Slit) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return 0, err
	}
	width := c.slits[slit]
	if c.SlitDrift {
		width--
	}
	return width, nil
}

// SetSlitWidth moves a slit to the given width in microns.
func (c *SimController) SetSlitWidth(slit Slit, um int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.slits[slit] = um
	return nil
}

// HomeSlit homes a slit to its device-defined width of 10 microns.
func (c *SimController) HomeSlit(slit Slit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(); err != nil {
		return err
	}
	c.slits[slit] = 10
	return nil
}

// Close marks the controller closed.
func (c *SimController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
