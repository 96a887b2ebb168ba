package types

import "tinygo.org/x/drivers"

// ---- Platform factories ----
//
// The board layer injects configured resources by id/number so services and
// tests never touch the machine package directly.

// Pin is a configured GPIO handle.
type Pin interface {
	Number() int
	ConfigureOutput(initial bool) error
	ConfigureInput() error
	Set(level bool)
	Get() bool
	Toggle()
}

// PinFactory hands out GPIO pins by number.
type PinFactory interface {
	ByNumber(n int) (Pin, bool)
}

// I2CBusFactory injects configured I²C instances by id.
// Uses the TinyGo drivers.I2C interface to remain compatible on MCU builds.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}
