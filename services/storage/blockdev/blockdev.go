// Package blockdev holds the process-wide block device namespace: named
// devices plus the registrar that carves partitions out of a parent device
// as addressable sub-devices.
package blockdev

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"flightcode-go/errcode"
)

// Device is the read/write surface of a block device.
type Device interface {
	SectorSize() int
	SectorCount() uint64
	ReadSectors(sector uint64, buf []byte) error
	WriteSectors(sector uint64, buf []byte) error
}

type entry struct {
	dev   Device
	minor int
}

// Registry maps device names to devices. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	devs map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{devs: map[string]entry{}}
}

// Register adds a named device. Names are unique.
func (r *Registry) Register(name string, minor int, dev Device) error {
	if name == "" || dev == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "register", Msg: "empty name or nil device"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devs[name]; exists {
		return &errcode.E{C: errcode.DeviceExists, Op: "register", Msg: name}
	}
	r.devs[name] = entry{dev: dev, minor: minor}
	return nil
}

// Lookup resolves a device by name.
func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devs[name]
	return e.dev, ok
}

// Names lists registered device names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devs))
	for n := range r.devs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RegisterPartition creates a child device addressing
// [first, first+count) sectors of parent. The child either exists fully
// registered afterwards or not at all; any failure is reported as a
// registration failure distinct from "partition absent".
func (r *Registry) RegisterPartition(child string, minor int, parent string, first, count uint64) error {
	pdev, ok := r.Lookup(parent)
	if !ok {
		return &errcode.E{C: errcode.RegisterFailed, Op: "register_partition",
			Msg: "parent " + parent, Err: errcode.NotFound}
	}
	if count == 0 || first+count < first || first+count > pdev.SectorCount() {
		return &errcode.E{C: errcode.RegisterFailed, Op: "register_partition",
			Msg: child, Err: errcode.RangeInvalid}
	}
	p := &partition{parent: pdev, first: first, count: count}
	if err := r.Register(child, minor, p); err != nil {
		return &errcode.E{C: errcode.RegisterFailed, Op: "register_partition", Msg: child, Err: err}
	}
	return nil
}

// partition is a contiguous sub-range view of a parent device.
type partition struct {
	parent Device
	first  uint64
	count  uint64
}

func (p *partition) SectorSize() int     { return p.parent.SectorSize() }
func (p *partition) SectorCount() uint64 { return p.count }

func (p *partition) ReadSectors(sector uint64, buf []byte) error {
	if err := p.check(sector, buf); err != nil {
		return err
	}
	return p.parent.ReadSectors(p.first+sector, buf)
}

func (p *partition) WriteSectors(sector uint64, buf []byte) error {
	if err := p.check(sector, buf); err != nil {
		return err
	}
	return p.parent.WriteSectors(p.first+sector, buf)
}

func (p *partition) check(sector uint64, buf []byte) error {
	ss := p.SectorSize()
	if ss <= 0 || len(buf)%ss != 0 {
		return errors.Wrap(errcode.InvalidParams, "buffer not a sector multiple")
	}
	n := uint64(len(buf) / ss)
	if sector+n < sector || sector+n > p.count {
		return errors.Wrap(errcode.RangeInvalid, "access past partition end")
	}
	return nil
}
