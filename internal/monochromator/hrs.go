package monochromator

import (
	"fmt"
	"log"
	"math"

	"github.com/MSLNZ/pr-superk-mono/internal/bounds"
	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
)

// Grating describes one installed grating.
type Grating struct {
	Blaze   string `json:"blaze"`
	Density string `json:"density"`
}

// defaultFilters describes the filters installed at the factory.
var defaultFilters = map[int]string{
	1: "None (open)",
	2: "320 nm",
	3: "590 nm",
	4: "665 nm",
	5: "715 nm",
	6: "Blank (closed)",
}

// HRS controls one HRS500M monochromator. Grating and filter metadata are
// static after construction; record-supplied values take precedence over
// device queries.
type HRS struct {
	record   *equipment.Record
	ctrl     Controller
	gratings map[int]Grating
	filters  map[int]string
}

// New connects to the monochromator behind ctrl and loads the static grating
// and filter metadata.
func New(record *equipment.Record, ctrl Controller) (*HRS, error) {
	h := &HRS{record: record, ctrl: ctrl}

	if entries := record.UserDefinedEntries("gratings"); entries != nil {
		h.gratings = make(map[int]Grating, len(entries))
		for _, e := range entries {
			h.gratings[e.Key] = Grating{Blaze: e.Blaze, Density: e.Density}
		}
	} else {
		h.gratings = make(map[int]Grating, 3)
		for position := 1; position <= 3; position++ {
			blaze, err := ctrl.GratingBlaze(position)
			if err != nil {
				return nil, fmt.Errorf("failed to read the blaze of %s grating %d: %w",
					record.Alias, position, err)
			}
			density, err := ctrl.GratingDensity(position)
			if err != nil {
				return nil, fmt.Errorf("failed to read the density of %s grating %d: %w",
					record.Alias, position, err)
			}
			h.gratings[position] = Grating{
				Blaze:   blaze,
				Density: fmt.Sprintf("%d/mm", density),
			}
		}
	}

	if filters := record.UserDefinedMap("filters"); filters != nil {
		h.filters = filters
	} else {
		h.filters = make(map[int]string, len(defaultFilters))
		for k, v := range defaultFilters {
			h.filters[k] = v
		}
	}

	return h, nil
}

// Alias returns the equipment alias of the monochromator.
func (h *HRS) Alias() string { return h.record.Alias }

// RecordToJSON converts the backing equipment record to a plain mapping.
func (h *HRS) RecordToJSON() map[string]interface{} { return h.record.ToJSON() }

// GratingInfo returns the blaze and density of each grating, keyed by
// position.
func (h *HRS) GratingInfo() map[int]Grating { return h.gratings }

// FilterInfo returns a description of the filter installed at each position.
func (h *HRS) FilterInfo() map[int]string { return h.filters }

// HomeFilterWheel homes the filter wheel and returns the resulting position.
// The home position is device-defined, so it is reported, not validated.
func (h *HRS) HomeFilterWheel() (int, error) {
	if err := h.ctrl.HomeFilterWheel(); err != nil {
		return 0, fmt.Errorf("failed to home the %s filter wheel: %w", h.record.Alias, err)
	}
	log.Printf("home the filter wheel of %s", h.record.Alias)
	return h.FilterPosition()
}

// HomeFrontEntranceSlit homes the front entrance slit and returns the
// resulting width in microns.
func (h *HRS) HomeFrontEntranceSlit() (int, error) {
	return h.homeSlit(FrontEntranceSlit)
}

// HomeFrontExitSlit homes the front exit slit and returns the resulting
// width in microns.
func (h *HRS) HomeFrontExitSlit() (int, error) {
	return h.homeSlit(FrontExitSlit)
}

func (h *HRS) homeSlit(slit Slit) (int, error) {
	if err := h.ctrl.HomeSlit(slit); err != nil {
		return 0, fmt.Errorf("failed to home the %s slit of %s: %w", slit, h.record.Alias, err)
	}
	log.Printf("home the %s slit of %s", slit, h.record.Alias)
	return h.slitWidth(slit)
}

// FrontEntranceSlitWidth returns the front entrance slit width in microns.
func (h *HRS) FrontEntranceSlitWidth() (int, error) {
	return h.slitWidth(FrontEntranceSlit)
}

// FrontExitSlitWidth returns the front exit slit width in microns.
func (h *HRS) FrontExitSlitWidth() (int, error) {
	return h.slitWidth(FrontExitSlit)
}

func (h *HRS) slitWidth(slit Slit) (int, error) {
	width, err := h.ctrl.SlitWidth(slit)
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s slit width of %s: %w", slit, h.record.Alias, err)
	}
	return width, nil
}

// SetFrontEntranceSlitWidth sets the front entrance slit width in microns
// and returns the confirmed width.
func (h *HRS) SetFrontEntranceSlitWidth(um int) (int, error) {
	return h.setSlitWidth(FrontEntranceSlit, um)
}

// SetFrontExitSlitWidth sets the front exit slit width in microns and
// returns the confirmed width.
func (h *HRS) SetFrontExitSlitWidth(um int) (int, error) {
	return h.setSlitWidth(FrontExitSlit, um)
}

func (h *HRS) setSlitWidth(slit Slit, um int) (int, error) {
	if err := bounds.CheckInt("slit width", um, 10, 3000); err != nil {
		return 0, err
	}
	if err := h.ctrl.SetSlitWidth(slit, um); err != nil {
		return 0, fmt.Errorf("failed to set the %s slit of %s to %d microns: %w",
			slit, h.record.Alias, um, err)
	}

	actual, err := h.slitWidth(slit)
	if err != nil {
		return 0, err
	}
	// the slit drive is deterministic, so a mismatch is a hard fault
	if actual != um {
		return 0, fmt.Errorf("%s %s slit reports %d microns after a move to %d",
			h.record.Alias, slit, actual, um)
	}
	log.Printf("set %s %s slit width to %d microns", h.record.Alias, slit, um)
	return actual, nil
}

// Wavelength returns the encoder-reported wavelength in nm.
func (h *HRS) Wavelength() (float64, error) {
	nm, err := h.ctrl.Wavelength()
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s wavelength: %w", h.record.Alias, err)
	}
	return nm, nil
}

// SetWavelength moves to the given wavelength in nm, rounded to 3 decimal
// places before transmission, and returns the encoder-reported wavelength.
// The encoder value may differ slightly from the request; that is expected
// and logged, not an error.
func (h *HRS) SetWavelength(nm float64) (float64, error) {
	requested := math.Round(nm*1000) / 1000
	if err := bounds.CheckFloat("wavelength", requested, -2800, 2800); err != nil {
		return 0, err
	}

	if err := h.ctrl.SetWavelength(requested); err != nil {
		return 0, fmt.Errorf("failed to set the %s wavelength to %v nm: %w",
			h.record.Alias, requested, err)
	}

	encoder, err := h.Wavelength()
	if err != nil {
		return 0, err
	}
	log.Printf("set %s wavelength to %v nm [encoder=%v nm]", h.record.Alias, requested, encoder)
	return encoder, nil
}

// FilterPosition returns the filter wheel position in [1, 6].
func (h *HRS) FilterPosition() (int, error) {
	position, err := h.ctrl.FilterPosition()
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s filter position: %w", h.record.Alias, err)
	}
	return position, nil
}

// SetFilterPosition moves the filter wheel to a position in [1, 6] and
// returns the confirmed position.
func (h *HRS) SetFilterPosition(position int) (int, error) {
	if err := bounds.CheckInt("filter position", position, 1, 6); err != nil {
		return 0, err
	}
	if err := h.ctrl.SetFilterPosition(position); err != nil {
		return 0, fmt.Errorf("failed to set the %s filter position to %d: %w",
			h.record.Alias, position, err)
	}

	actual, err := h.FilterPosition()
	if err != nil {
		return 0, err
	}
	if actual != position {
		return 0, fmt.Errorf("%s filter wheel reports position %d after a move to %d",
			h.record.Alias, actual, position)
	}
	log.Printf("set %s filter position to %d [%s]", h.record.Alias, position, h.filters[position])
	return actual, nil
}

// GratingPosition returns the grating position in [1, 3].
func (h *HRS) GratingPosition() (int, error) {
	position, err := h.ctrl.Grating()
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s grating position: %w", h.record.Alias, err)
	}
	return position, nil
}

// SetGratingPosition selects the grating at a position in [1, 3] and
// returns the confirmed position.
func (h *HRS) SetGratingPosition(position int) (int, error) {
	if err := bounds.CheckInt("grating position", position, 1, 3); err != nil {
		return 0, err
	}
	if err := h.ctrl.SetGrating(position); err != nil {
		return 0, fmt.Errorf("failed to set the %s grating to position %d: %w",
			h.record.Alias, position, err)
	}

	actual, err := h.GratingPosition()
	if err != nil {
		return 0, err
	}
	if actual != position {
		return 0, fmt.Errorf("%s grating reports position %d after a move to %d",
			h.record.Alias, actual, position)
	}
	log.Printf("set %s grating to position %d [%+v]", h.record.Alias, position, h.gratings[position])
	return actual, nil
}

// Disconnect releases the vendor connection.
func (h *HRS) Disconnect() error {
	return h.ctrl.Close()
}
