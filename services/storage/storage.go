// Package storage brings the removable card online: it discovers the
// partitions the board expects, registers each as a named sub-device and
// mounts the user-data and power-safe volumes in a fixed order.
package storage

import (
	"github.com/pkg/errors"

	"flightcode-go/errcode"
	"flightcode-go/services/storage/blockdev"
	"flightcode-go/services/storage/mount"
	"flightcode-go/services/storage/parttab"
	"flightcode-go/types"
	"flightcode-go/x/mathx"
)

// MaxPartitionIndex bounds expected indices. Child device names carry a
// single-digit suffix, so indices above 9 can never be addressed; this is a
// deliberate naming limit, not a table-size limit.
const MaxPartitionIndex = 9

// Status is a partition request's lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusFound
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not-found"
	default:
		return "pending"
	}
}

// PartitionRequest tracks one expected partition through discovery.
type PartitionRequest struct {
	Index  int
	Status Status
	Device string // registered child name when found
	Err    error  // registration failure, distinct from absence
}

// Report is the outcome of a full sequencer run.
type Report struct {
	Requests     []PartitionRequest
	UserDataErr  error // set when the mandatory mount failed
	PowerSafeErr error // non-fatal by policy
}

// ParseFunc walks a partition table, invoking visit per entry.
type ParseFunc func(dev blockdev.Device, visit func(parttab.Partition) error) error

// Sequencer runs the storage bring-up for one physical device. It is built
// once and run once; the caller guarantees single invocation.
type Sequencer struct {
	cfg      types.StorageConfig
	reg      *blockdev.Registry
	tab      *mount.Table
	parse    ParseFunc
	requests []PartitionRequest
}

// Option tweaks sequencer construction.
type Option func(*Sequencer)

// WithParser substitutes the partition table parser (tests).
func WithParser(p ParseFunc) Option {
	return func(s *Sequencer) { s.parse = p }
}

// NewSequencer validates cfg and prepares one request per expected index.
// Expected indices must be unique and lie in 0..MaxPartitionIndex.
func NewSequencer(cfg types.StorageConfig, reg *blockdev.Registry, tab *mount.Table, opts ...Option) (*Sequencer, error) {
	if cfg.Device == "" {
		return nil, errors.Wrap(errcode.InvalidParams, "no parent device name")
	}
	if len(cfg.Partitions) == 0 {
		return nil, errors.Wrap(errcode.InvalidParams, "no expected partitions")
	}
	seen := map[int]bool{}
	reqs := make([]PartitionRequest, 0, len(cfg.Partitions))
	for _, idx := range cfg.Partitions {
		if !mathx.Between(idx, 0, MaxPartitionIndex) {
			return nil, errors.Wrapf(errcode.InvalidParams, "partition index %d outside 0..%d", idx, MaxPartitionIndex)
		}
		if seen[idx] {
			return nil, errors.Wrapf(errcode.InvalidParams, "duplicate partition index %d", idx)
		}
		seen[idx] = true
		reqs = append(reqs, PartitionRequest{Index: idx, Status: StatusPending})
	}

	s := &Sequencer{
		cfg:      cfg,
		reg:      reg,
		tab:      tab,
		parse:    parttab.Parse,
		requests: reqs,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ChildName derives the device node for a partition index:
// parent base plus a "p<digit>" suffix. Indices outside 0..9 are rejected.
func ChildName(parent string, index int) (string, error) {
	if !mathx.Between(index, 0, MaxPartitionIndex) {
		return "", errors.Wrapf(errcode.InvalidParams, "partition index %d not addressable", index)
	}
	return parent + "p" + string(rune('0'+index)), nil
}

// matchResult is threaded through one table scan; it replaces shared
// mutable state across the callback boundary.
type matchResult struct {
	found  bool
	device string
	err    error
}

// scanFor walks the table once looking for the expected index and registers
// the matching partition as a child device.
func (s *Sequencer) scanFor(dev blockdev.Device, want int) matchResult {
	var res matchResult
	err := s.parse(dev, func(p parttab.Partition) error {
		// Single-digit suffix rule: never match an index the naming scheme
		// cannot address, even if the table reports one.
		if res.found || p.Index != want || !mathx.Between(p.Index, 0, MaxPartitionIndex) {
			return nil
		}
		name, nerr := ChildName(s.cfg.Device, want)
		if nerr != nil {
			res.err = nerr
			return nil
		}
		if rerr := s.reg.RegisterPartition(name, want, s.cfg.Device, p.FirstBlock, p.BlockCount); rerr != nil {
			res.err = rerr
			return nil
		}
		res.found = true
		res.device = name
		return nil
	})
	if err != nil && res.err == nil {
		res.err = err
	}
	return res
}

// Discover runs one table scan per expected index and leaves every request
// in a terminal state. Absence and registration failures are both non-fatal
// here; the caller inspects the requests for logging.
func (s *Sequencer) Discover() []PartitionRequest {
	dev, ok := s.reg.Lookup(s.cfg.Device)
	for i := range s.requests {
		req := &s.requests[i]
		if !ok {
			req.Status = StatusNotFound
			req.Err = errors.Wrapf(errcode.NotFound, "parent device %s", s.cfg.Device)
			continue
		}
		res := s.scanFor(dev, req.Index)
		if res.found {
			req.Status = StatusFound
			req.Device = res.device
		} else {
			req.Status = StatusNotFound
			req.Err = res.err
		}
	}
	return s.requests
}

// mountOne attaches one configured volume.
func (s *Sequencer) mountOne(spec types.MountSpec) error {
	src, err := ChildName(s.cfg.Device, spec.Index)
	if err != nil {
		return err
	}
	return s.tab.Mount(src, spec.Path, spec.FSType, 0, spec.Options)
}

// Run executes discovery then the mount sequence. The user-data mount is
// mandatory: its failure aborts and is returned. The power-safe mount, when
// enabled, is attempted afterwards with autoformat semantics left to the
// driver; its failure is recorded in the report but not returned.
func (s *Sequencer) Run() (Report, error) {
	r := Report{Requests: s.Discover()}

	if err := s.mountOne(s.cfg.UserData); err != nil {
		r.UserDataErr = err
		return r, err
	}

	if s.cfg.EnablePowerSafe {
		r.PowerSafeErr = s.mountOne(s.cfg.PowerSafe)
	}
	return r, nil
}
