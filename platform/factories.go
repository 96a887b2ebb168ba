// Package platform provides host-side implementations of the board's
// injected resources: I²C buses, GPIO pins, block devices, filesystem
// drivers and the SDMMC controller. Services and tests receive these
// through the factory interfaces in types and never touch hardware
// packages directly.
package platform

import (
	"sync"

	"tinygo.org/x/drivers"

	"flightcode-go/types"
)

// ----------------------------- I²C (host) ------------------------------------

// TxFunc emulates a device behind a HostI2C bus.
type TxFunc func(addr uint16, w, r []byte) error

// HostI2C implements tinygo drivers.I2C for host-side runs. An optional
// Handler emulates the devices on the bus; without one every transfer
// succeeds and reads back zeros.
type HostI2C struct {
	mu      sync.Mutex
	Handler TxFunc
	LastTx  struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if h.Handler != nil {
		return h.Handler(addr, w, r)
	}
	return nil
}

type hostI2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *hostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// NewI2CFactory creates inert host buses for the given ids.
func NewI2CFactory(ids ...string) types.I2CBusFactory {
	buses := make(map[string]drivers.I2C, len(ids))
	for _, id := range ids {
		buses[id] = &HostI2C{}
	}
	return &hostI2CFactory{buses: buses}
}

// NewI2CFactoryWith creates a factory over pre-built buses, letting tests
// attach handlers before wiring.
func NewI2CFactoryWith(buses map[string]drivers.I2C) types.I2CBusFactory {
	return &hostI2CFactory{buses: buses}
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements types.Pin for host-side runs.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	sets    int
}

func (p *FakePin) ConfigureInput() error {
	p.mu.Lock()
	p.modeOut = false
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.sets++
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

// Sets reports how many times Set has been called (tests).
func (p *FakePin) Sets() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sets
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (types.Pin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// Get exposes the underlying *FakePin for tests (e.g. to preset levels).
func (f *HostPinFactory) Get(n int) (*FakePin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	return p, ok
}

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() *HostPinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}
