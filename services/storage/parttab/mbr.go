// Package parttab walks the on-disk MBR partition table of a block device
// and reports each populated primary entry to a caller-supplied visitor.
package parttab

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"flightcode-go/errcode"
	"flightcode-go/services/storage/blockdev"
)

const (
	sectorBytes = 512

	signatureOff = 510
	signature1   = 0x55
	signature2   = 0xAA

	entryOff   = 0x01BE
	entrySize  = 16
	numEntries = 4
)

// Partition describes one table entry. Values are only valid during the
// visit callback; capture what you need before returning.
type Partition struct {
	Index      int    // slot in the table, 0-based
	Type       byte   // MBR partition type
	FirstBlock uint64 // absolute sector offset on the parent device
	BlockCount uint64 // length in sectors
}

// Parse reads the partition table from dev and invokes visit once per
// populated primary entry, in table order. A visit error stops the walk and
// is returned. A missing or unsigned table reports errcode.NotFound.
func Parse(dev blockdev.Device, visit func(Partition) error) error {
	ss := dev.SectorSize()
	if ss < sectorBytes {
		return errors.Wrap(errcode.InvalidParams, "sector size below 512")
	}
	buf := make([]byte, ss)
	if err := dev.ReadSectors(0, buf); err != nil {
		return errors.Wrap(err, "reading boot sector")
	}
	if buf[signatureOff] != signature1 || buf[signatureOff+1] != signature2 {
		return errors.Wrap(errcode.NotFound, "no MBR signature")
	}

	for i := 0; i < numEntries; i++ {
		e := buf[entryOff+i*entrySize : entryOff+(i+1)*entrySize]
		ptype := e[4]
		first := binary.LittleEndian.Uint32(e[8:])
		count := binary.LittleEndian.Uint32(e[12:])
		if ptype == 0 || count == 0 {
			continue
		}
		p := Partition{
			Index:      i,
			Type:       ptype,
			FirstBlock: uint64(first),
			BlockCount: uint64(count),
		}
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

// ---- table construction helpers (image tooling and tests) ----

// Sign writes the MBR boot signature into a 512-byte sector image.
func Sign(sector []byte) {
	sector[signatureOff] = signature1
	sector[signatureOff+1] = signature2
}

// SetEntry fills primary slot idx of a 512-byte sector image.
func SetEntry(sector []byte, idx int, ptype byte, first, count uint32) {
	e := sector[entryOff+idx*entrySize : entryOff+(idx+1)*entrySize]
	e[4] = ptype
	binary.LittleEndian.PutUint32(e[8:], first)
	binary.LittleEndian.PutUint32(e[12:], count)
}
