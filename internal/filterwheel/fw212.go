package filterwheel

import (
	"fmt"
	"log"

	"github.com/MSLNZ/pr-superk-mono/internal/bounds"
	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
)

// defaultDensities describes the ND filters installed at the factory in a
// 12-position wheel. Position 1 is empty.
var defaultDensities = map[int]string{
	1:  "",
	2:  "0.1",
	3:  "0.2",
	4:  "0.3",
	5:  "0.4",
	6:  "0.5",
	7:  "0.6",
	8:  "1.0",
	9:  "1.3",
	10: "2.0",
	11: "3.0",
	12: "4.0",
}

// FW212C controls one FW212CNEB ND filter wheel. The optical-density map is
// static after construction; record-supplied values take precedence over the
// factory defaults.
type FW212C struct {
	record      *equipment.Record
	ctrl        Controller
	maxPosition int
	densities   map[int]string
}

// New connects to the filter wheel behind ctrl, queries the supported
// position count and validates that the optical-density map has exactly one
// entry per position.
func New(record *equipment.Record, ctrl Controller) (*FW212C, error) {
	max, err := ctrl.PositionCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read the %s position count: %w", record.Alias, err)
	}

	densities := record.UserDefinedMap("filters")
	if densities == nil {
		densities = make(map[int]string, len(defaultDensities))
		for k, v := range defaultDensities {
			densities[k] = v
		}
	}

	if len(densities) != max {
		return nil, fmt.Errorf(
			"the number of items in the OD filter map [%d] does not equal the "+
				"number of positions that the filter wheel supports [%d]",
			len(densities), max)
	}

	log.Printf("connected to %s with %d filter positions", record, max)
	return &FW212C{
		record:      record,
		ctrl:        ctrl,
		maxPosition: max,
		densities:   densities,
	}, nil
}

// Alias returns the equipment alias of the filter wheel.
func (w *FW212C) Alias() string { return w.record.Alias }

// RecordToJSON converts the backing equipment record to a plain mapping.
func (w *FW212C) RecordToJSON() map[string]interface{} { return w.record.ToJSON() }

// PositionCount returns the number of filter positions.
func (w *FW212C) PositionCount() int { return w.maxPosition }

// FilterInfo returns the optical density of the filter at each position. An
// empty density means the position has no filter installed.
func (w *FW212C) FilterInfo() map[int]string { return w.densities }

// Position returns the current position, starting at 1.
func (w *FW212C) Position() (int, error) {
	position, err := w.ctrl.Position()
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s position: %w", w.record.Alias, err)
	}
	return position, nil
}

// SetPosition moves the wheel to a position in [1, max] and returns the
// position the wheel reports after the move. The wheel confirms its own
// moves, so the reported position is trusted without a second comparison.
func (w *FW212C) SetPosition(position int) (int, error) {
	if err := bounds.CheckInt("position", position, 1, w.maxPosition); err != nil {
		return 0, err
	}
	if err := w.ctrl.SetPosition(position); err != nil {
		return 0, fmt.Errorf("failed to set the %s position to %d: %w",
			w.record.Alias, position, err)
	}

	actual, err := w.Position()
	if err != nil {
		return 0, err
	}
	log.Printf("set %s position to %d [OD=%s]", w.record.Alias, actual, w.densities[actual])
	return actual, nil
}

// Disconnect releases the vendor connection.
func (w *FW212C) Disconnect() error {
	return w.ctrl.Close()
}
