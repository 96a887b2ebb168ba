// Package mount attaches filesystem drivers, looked up by type string, to
// named block devices. Successful mounts are process-global namespace state
// that lives until explicit unmount or shutdown.
package mount

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"flightcode-go/errcode"
	"flightcode-go/services/storage/blockdev"
)

// Flag carries mount flags. None are defined yet beyond read-only.
type Flag uint32

const (
	ReadOnly Flag = 1 << iota
)

// Driver attaches a filesystem to a block device. Pseudo filesystems
// (procfs style) receive a nil device. data carries driver-specific options
// such as "autoformat".
type Driver interface {
	Mount(dev blockdev.Device, flags Flag, data string) error
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(dev blockdev.Device, flags Flag, data string) error

func (f DriverFunc) Mount(dev blockdev.Device, flags Flag, data string) error {
	return f(dev, flags, data)
}

// Record is one live mount.
type Record struct {
	Source string // "" for pseudo filesystems
	Target string
	FSType string
	Flags  Flag
}

// Table is the mount namespace plus the driver registry feeding it.
type Table struct {
	reg *blockdev.Registry

	mu      sync.RWMutex
	drivers map[string]Driver
	mounts  map[string]Record // keyed by target
}

func NewTable(reg *blockdev.Registry) *Table {
	return &Table{
		reg:     reg,
		drivers: map[string]Driver{},
		mounts:  map[string]Record{},
	}
}

// RegisterDriver installs a filesystem driver for a type string.
// It panics on duplicate registration to catch mistakes at start-up.
func (t *Table) RegisterDriver(fstype string, d Driver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fstype == "" || d == nil {
		panic("mount: empty fstype or nil driver")
	}
	if _, exists := t.drivers[fstype]; exists {
		panic("mount: driver already registered for " + fstype)
	}
	t.drivers[fstype] = d
}

// Mount attaches fstype to target, backed by the named source device
// (or none for pseudo filesystems). Absent source devices report
// errcode.NotFound, mirroring a missing directory entry.
func (t *Table) Mount(source, target, fstype string, flags Flag, data string) error {
	if target == "" || fstype == "" {
		return errors.Wrap(errcode.InvalidParams, "mount needs target and fstype")
	}

	t.mu.RLock()
	drv, ok := t.drivers[fstype]
	_, mounted := t.mounts[target]
	t.mu.RUnlock()
	if mounted {
		return errors.Wrapf(errcode.AlreadyMounted, "target %s", target)
	}
	if !ok {
		return errors.Wrapf(errcode.Unsupported, "no driver for %q", fstype)
	}

	var dev blockdev.Device
	if source != "" {
		dev, ok = t.reg.Lookup(source)
		if !ok {
			return errors.Wrapf(errcode.NotFound, "source device %s", source)
		}
	}

	if err := drv.Mount(dev, flags, data); err != nil {
		return errors.Wrapf(err, "mounting %s at %s", fstype, target)
	}

	t.mu.Lock()
	t.mounts[target] = Record{Source: source, Target: target, FSType: fstype, Flags: flags}
	t.mu.Unlock()
	return nil
}

// Unmount detaches the filesystem at target.
func (t *Table) Unmount(target string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.mounts[target]; !ok {
		return errors.Wrapf(errcode.NotFound, "target %s", target)
	}
	delete(t.mounts, target)
	return nil
}

// MountedAt reports the mount covering target, if any.
func (t *Table) MountedAt(target string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.mounts[target]
	return r, ok
}

// Mounts lists live mounts sorted by target.
func (t *Table) Mounts() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.mounts))
	for _, r := range t.mounts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// HasOption reports whether a comma-separated data string carries opt.
// Drivers use it to detect options like "autoformat".
func HasOption(data, opt string) bool {
	for _, f := range strings.Split(data, ",") {
		if strings.TrimSpace(f) == opt {
			return true
		}
	}
	return false
}
