// Package serialport provides the serial transport used by the instrument
// connection layers. It abstracts a serial port behind a small interface so
// the register and vendor-command clients can be unit tested without real
// hardware.
package serialport

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for a serial port.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with a read timeout. Real serial ports
// implement it; test ports may not.
type TimeoutPorter interface {
	Porter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}
