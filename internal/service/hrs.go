package service

import (
	"encoding/json"

	"github.com/MSLNZ/pr-superk-mono/internal/monochromator"
)

// NewHRS exposes an HRS500M monochromator over RPC under the name "mono-hrs".
func NewHRS(mono *monochromator.HRS) *Base {
	b := NewBase("mono-hrs", mono.RecordToJSON())

	b.Handle("grating_info", nullary(func() (interface{}, error) {
		return mono.GratingInfo(), nil
	}))
	b.Handle("filter_info", nullary(func() (interface{}, error) {
		return mono.FilterInfo(), nil
	}))

	b.Handle("get_wavelength", nullary(func() (interface{}, error) {
		return mono.Wavelength()
	}))
	b.Handle("set_wavelength", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		nm, err := floatArg(args, 0)
		if err != nil {
			return nil, err
		}
		return mono.SetWavelength(nm)
	})

	setPosition := func(fn func(int) (int, error)) Method {
		return func(args []json.RawMessage) (interface{}, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			position, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(position)
		}
	}
	b.Handle("get_grating_position", nullary(func() (interface{}, error) {
		return mono.GratingPosition()
	}))
	b.Handle("set_grating_position", setPosition(mono.SetGratingPosition))
	b.Handle("get_filter_position", nullary(func() (interface{}, error) {
		return mono.FilterPosition()
	}))
	b.Handle("set_filter_position", setPosition(mono.SetFilterPosition))
	b.Handle("home_filter_wheel", nullary(func() (interface{}, error) {
		return mono.HomeFilterWheel()
	}))

	setWidth := func(fn func(int) (int, error)) Method {
		return func(args []json.RawMessage) (interface{}, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			um, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(um)
		}
	}
	b.Handle("get_front_entrance_slit_width", nullary(func() (interface{}, error) {
		return mono.FrontEntranceSlitWidth()
	}))
	b.Handle("set_front_entrance_slit_width", setWidth(mono.SetFrontEntranceSlitWidth))
	b.Handle("home_front_entrance_slit", nullary(func() (interface{}, error) {
		return mono.HomeFrontEntranceSlit()
	}))
	b.Handle("get_front_exit_slit_width", nullary(func() (interface{}, error) {
		return mono.FrontExitSlitWidth()
	}))
	b.Handle("set_front_exit_slit_width", setWidth(mono.SetFrontExitSlitWidth))
	b.Handle("home_front_exit_slit", nullary(func() (interface{}, error) {
		return mono.HomeFrontExitSlit()
	}))

	return b
}
