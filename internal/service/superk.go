package service

import (
	"encoding/json"

	"github.com/MSLNZ/pr-superk-mono/internal/nkt"
	"github.com/MSLNZ/pr-superk-mono/internal/superk"
)

// NewSuperK exposes a SuperK laser over RPC under the name "superk".
func NewSuperK(laser *superk.SuperK) *Base {
	b := NewBase("superk", laser.RecordToJSON())

	b.Handle("ensure_interlock_ok", nullary(func() (interface{}, error) {
		if err := laser.EnsureInterlockOK(); err != nil {
			return nil, err
		}
		return true, nil
	}))

	b.Handle("get_operating_mode", nullary(func() (interface{}, error) {
		mode, err := laser.OperatingMode()
		if err != nil {
			return nil, err
		}
		return int(mode), nil
	}))
	b.Handle("get_operating_modes", nullary(func() (interface{}, error) {
		return laser.OperatingModes(), nil
	}))
	b.Handle("set_operating_mode", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		mode, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := laser.SetOperatingMode(nkt.OperatingMode(mode)); err != nil {
			return nil, err
		}
		return nil, nil
	})

	enable := func(fn func() error) Method {
		return nullary(func() (interface{}, error) {
			if err := fn(); err != nil {
				return nil, err
			}
			return nil, nil
		})
	}
	b.Handle("enable_constant_current_mode", enable(laser.EnableConstantCurrentMode))
	b.Handle("enable_constant_power_mode", enable(laser.EnableConstantPowerMode))
	b.Handle("enable_modulated_current_mode", enable(laser.EnableModulatedCurrentMode))
	b.Handle("enable_modulated_power_mode", enable(laser.EnableModulatedPowerMode))
	b.Handle("enable_power_lock_mode", enable(laser.EnablePowerLockMode))

	is := func(fn func() (bool, error)) Method {
		return nullary(func() (interface{}, error) { return fn() })
	}
	b.Handle("is_constant_current_mode", is(laser.IsConstantCurrentMode))
	b.Handle("is_constant_power_mode", is(laser.IsConstantPowerMode))
	b.Handle("is_modulated_current_mode", is(laser.IsModulatedCurrentMode))
	b.Handle("is_modulated_power_mode", is(laser.IsModulatedPowerMode))
	b.Handle("is_power_lock_mode", is(laser.IsPowerLockMode))

	b.Handle("get_temperature", nullary(func() (interface{}, error) {
		return laser.Temperature()
	}))
	b.Handle("get_status_bits", nullary(func() (interface{}, error) {
		return laser.StatusBits()
	}))

	b.Handle("get_power_level", nullary(func() (interface{}, error) {
		return laser.PowerLevel()
	}))
	b.Handle("get_current_level", nullary(func() (interface{}, error) {
		return laser.CurrentLevel()
	}))
	b.Handle("get_feedback_level", nullary(func() (interface{}, error) {
		return laser.FeedbackLevel()
	}))

	setLevel := func(fn func(float64) (float64, error)) Method {
		return func(args []json.RawMessage) (interface{}, error) {
			if err := wantArgs(args, 1); err != nil {
				return nil, err
			}
			percentage, err := floatArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(percentage)
		}
	}
	b.Handle("set_power_level", setLevel(laser.SetPowerLevel))
	b.Handle("set_current_level", setLevel(laser.SetCurrentLevel))
	b.Handle("set_feedback_level", setLevel(laser.SetFeedbackLevel))

	b.Handle("is_emission_on", nullary(func() (interface{}, error) {
		return laser.IsEmissionOn()
	}))
	b.Handle("emission", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		on, err := boolArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := laser.SetEmission(on); err != nil {
			return nil, err
		}
		return nil, nil
	})

	b.Handle("lock_front_panel", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		on, err := boolArg(args, 0)
		if err != nil {
			return nil, err
		}
		if err := laser.LockFrontPanel(on); err != nil {
			return nil, err
		}
		return nil, nil
	})

	b.Handle("get_user_text", nullary(func() (interface{}, error) {
		return laser.UserText()
	}))
	b.Handle("set_user_text", func(args []json.RawMessage) (interface{}, error) {
		if err := wantArgs(args, 1); err != nil {
			return nil, err
		}
		text, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return laser.SetUserText(text)
	})

	return b
}
