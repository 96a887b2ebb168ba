package platform

import (
	"github.com/pkg/errors"

	"flightcode-go/errcode"
	"flightcode-go/services/storage/blockdev"
	"flightcode-go/services/storage/mount"
)

// Host filesystem drivers. These validate on-media structure the way the
// real drivers do, but stop short of exposing file I/O: bring-up only needs
// mount/unmount semantics.

const (
	bootSigOff = 510 // 0x55AA little-endian

	lfsMagicOff = 8
)

var lfsMagic = []byte("littlefs")

func readSector0(dev blockdev.Device) ([]byte, error) {
	if dev == nil {
		return nil, errors.Wrap(errcode.NoMedia, "no backing device")
	}
	buf := make([]byte, dev.SectorSize())
	if err := dev.ReadSectors(0, buf); err != nil {
		return nil, errors.Wrap(err, "reading boot sector")
	}
	return buf, nil
}

// VFATDriver accepts media carrying a FAT boot sector.
func VFATDriver() mount.Driver {
	return mount.DriverFunc(func(dev blockdev.Device, _ mount.Flag, _ string) error {
		buf, err := readSector0(dev)
		if err != nil {
			return err
		}
		if buf[bootSigOff] != 0x55 || buf[bootSigOff+1] != 0xAA {
			return errors.Wrap(errcode.IOError, "no FAT boot signature")
		}
		return nil
	})
}

// LittleFSDriver accepts media carrying a littlefs superblock. With the
// "autoformat" option an unformatted volume is formatted in place instead
// of failing the mount.
func LittleFSDriver() mount.Driver {
	return mount.DriverFunc(func(dev blockdev.Device, _ mount.Flag, data string) error {
		buf, err := readSector0(dev)
		if err != nil {
			return err
		}
		if string(buf[lfsMagicOff:lfsMagicOff+len(lfsMagic)]) == string(lfsMagic) {
			return nil
		}
		if !mount.HasOption(data, "autoformat") {
			return errors.Wrap(errcode.IOError, "no littlefs superblock")
		}
		copy(buf[lfsMagicOff:], lfsMagic)
		return errors.Wrap(dev.WriteSectors(0, buf), "formatting")
	})
}

// ProcFSDriver is the pseudo filesystem exposing process state. It takes
// no backing device.
func ProcFSDriver() mount.Driver {
	return mount.DriverFunc(func(dev blockdev.Device, _ mount.Flag, _ string) error {
		if dev != nil {
			return errors.Wrap(errcode.InvalidParams, "procfs takes no source device")
		}
		return nil
	})
}

// RegisterHostDrivers installs the filesystem drivers bring-up expects.
func RegisterHostDrivers(tab *mount.Table) {
	tab.RegisterDriver("vfat", VFATDriver())
	tab.RegisterDriver("littlefs", LittleFSDriver())
	tab.RegisterDriver("procfs", ProcFSDriver())
}
