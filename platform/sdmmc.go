package platform

import (
	"github.com/pkg/errors"

	"flightcode-go/services/storage/blockdev"
)

// HostSDMMC emulates the SDMMC slot controller. The inserted card, if any,
// is the block device Init hands back for registration.
type HostSDMMC struct {
	Card    blockdev.Device // nil when the slot is empty
	InitErr error           // injected controller fault

	Slot  int // recorded by Init
	Minor int
}

// Init brings the slot controller up and probes the inserted card.
// An empty slot is not an initialisation failure; it returns a nil device.
func (c *HostSDMMC) Init(slot, minor int) (blockdev.Device, error) {
	c.Slot, c.Minor = slot, minor
	if c.InitErr != nil {
		return nil, errors.Wrapf(c.InitErr, "sdmmc slot %d", slot)
	}
	return c.Card, nil
}
