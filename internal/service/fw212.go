package service

import (
	"encoding/json"

	"github.com/MSLNZ/pr-superk-mono/internal/filterwheel"
)

// NewFW212C exposes an ND filter wheel over RPC under the name
// "nd-filter-wheel".
func NewFW212C(wheel *filterwheel.FW212C) *Base {
	b := NewBase("nd-filter-wheel", wheel.RecordToJSON())

	b.Handle("filter_info", nullary(func() (interface{}, error) {
		return wheel.FilterInfo(), nil
	}))
	b.Handle("position_count", nullary(func() (interface{}, error) {
		return wheel.PositionCount(), nil
	}))
	b.Handle("get_position", nullary(func() (interface{}, error) {
		return wheel.Position()
	}))
	b.Handle("set_position", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		position, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		return wheel.SetPosition(position)
	})

	return b
}
