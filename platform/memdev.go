package platform

import (
	"sync"

	"github.com/pkg/errors"

	"flightcode-go/errcode"
)

// MemDevice is a RAM-backed block device. It stands in for the SD card on
// host runs and in tests.
type MemDevice struct {
	mu         sync.RWMutex
	sectorSize int
	data       []byte
	failRead   error // injected fault, returned by every ReadSectors
	failWrite  error
}

// NewMemDevice allocates a zeroed device of count sectors.
func NewMemDevice(sectorSize int, count uint64) *MemDevice {
	return &MemDevice{
		sectorSize: sectorSize,
		data:       make([]byte, uint64(sectorSize)*count),
	}
}

func (d *MemDevice) SectorSize() int { return d.sectorSize }

func (d *MemDevice) SectorCount() uint64 {
	return uint64(len(d.data) / d.sectorSize)
}

// FailReads makes every subsequent read return err. Pass nil to heal.
func (d *MemDevice) FailReads(err error) {
	d.mu.Lock()
	d.failRead = err
	d.mu.Unlock()
}

// FailWrites makes every subsequent write return err. Pass nil to heal.
func (d *MemDevice) FailWrites(err error) {
	d.mu.Lock()
	d.failWrite = err
	d.mu.Unlock()
}

func (d *MemDevice) ReadSectors(sector uint64, buf []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.failRead != nil {
		return d.failRead
	}
	off, err := d.span(sector, buf)
	if err != nil {
		return err
	}
	copy(buf, d.data[off:])
	return nil
}

func (d *MemDevice) WriteSectors(sector uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite != nil {
		return d.failWrite
	}
	off, err := d.span(sector, buf)
	if err != nil {
		return err
	}
	copy(d.data[off:], buf)
	return nil
}

func (d *MemDevice) span(sector uint64, buf []byte) (uint64, error) {
	if len(buf)%d.sectorSize != 0 {
		return 0, errors.Wrap(errcode.InvalidParams, "buffer not a sector multiple")
	}
	n := uint64(len(buf) / d.sectorSize)
	if sector+n < sector || sector+n > d.SectorCount() {
		return 0, errors.Wrap(errcode.RangeInvalid, "access past device end")
	}
	return sector * uint64(d.sectorSize), nil
}
