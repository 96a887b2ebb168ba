package parttab

import (
	"testing"

	"flightcode-go/errcode"

	"github.com/pkg/errors"
)

type memDevice struct {
	data []byte
}

func newMemDevice(sectors int) *memDevice { return &memDevice{data: make([]byte, sectors*512)} }

func (m *memDevice) SectorSize() int     { return 512 }
func (m *memDevice) SectorCount() uint64 { return uint64(len(m.data) / 512) }
func (m *memDevice) ReadSectors(sector uint64, buf []byte) error {
	copy(buf, m.data[sector*512:])
	return nil
}
func (m *memDevice) WriteSectors(sector uint64, buf []byte) error {
	copy(m.data[sector*512:], buf)
	return nil
}

type tentry struct {
	ptype        byte
	first, count uint32
}

func imageWith(entries ...tentry) *memDevice {
	d := newMemDevice(4096)
	sector := d.data[:512]
	Sign(sector)
	for i, e := range entries {
		if e.ptype == 0 { // deliberately empty slot
			continue
		}
		SetEntry(sector, i, e.ptype, e.first, e.count)
	}
	return d
}

func TestParseVisitsPopulatedEntries(t *testing.T) {
	d := imageWith(
		tentry{0x0C, 100, 400}, // FAT32 LBA at [100,500)
		tentry{0x83, 500, 1000},
	)

	var got []Partition
	err := Parse(d, func(p Partition) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("visited %d entries, want 2", len(got))
	}
	if got[0].Index != 0 || got[0].FirstBlock != 100 || got[0].BlockCount != 400 {
		t.Fatalf("entry 0: %+v", got[0])
	}
	if got[1].Index != 1 || got[1].Type != 0x83 {
		t.Fatalf("entry 1: %+v", got[1])
	}
}

func TestParseSkipsEmptySlots(t *testing.T) {
	d := imageWith(
		tentry{}, // slot 0 empty
		tentry{0x0C, 64, 128},
	)

	var got []Partition
	if err := Parse(d, func(p Partition) error { got = append(got, p); return nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Index != 1 {
		t.Fatalf("expected only slot 1, got %+v", got)
	}
}

func TestParseNoSignature(t *testing.T) {
	d := newMemDevice(64)
	err := Parse(d, func(Partition) error { t.Fatal("visit on unsigned table"); return nil })
	if errcode.Of(err) != errcode.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestParseVisitErrorStopsWalk(t *testing.T) {
	d := imageWith(
		tentry{0x0C, 100, 400},
		tentry{0x83, 500, 1000},
	)
	boom := errors.New("stop")
	calls := 0
	err := Parse(d, func(Partition) error {
		calls++
		return boom
	})
	if err != boom || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestParseEmptyTable(t *testing.T) {
	d := newMemDevice(64)
	Sign(d.data[:512])
	calls := 0
	if err := Parse(d, func(Partition) error { calls++; return nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no visits on empty table, got %d", calls)
	}
}
