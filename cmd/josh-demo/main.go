// cmd/josh-demo/main.go
//
// Host demo of the josh bring-up: a simulated SD card and barometer are
// wired through the real services, and everything published on the board
// topics is printed to the console.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tinygo.org/x/drivers"

	"flightcode-go/board/josh"
	"flightcode-go/bus"
	"flightcode-go/platform"
	"flightcode-go/services/baro"
	"flightcode-go/services/bringup"
	"flightcode-go/services/config"
	"flightcode-go/services/heartbeat"
	"flightcode-go/services/storage/blockdev"
	"flightcode-go/services/storage/mount"
	"flightcode-go/services/storage/parttab"
	"flightcode-go/types"
)

const demoRuntime = 3 * time.Second

// simCard builds the card the board expects: partition 0 formatted vfat,
// partition 1 blank.
func simCard() (*platform.MemDevice, error) {
	card := platform.NewMemDevice(512, 4096)

	mbr := make([]byte, 512)
	parttab.SetEntry(mbr, 0, 0x0C, 128, 3000)
	parttab.SetEntry(mbr, 1, 0x83, 3200, 800)
	parttab.Sign(mbr)
	if err := card.WriteSectors(0, mbr); err != nil {
		return nil, err
	}

	boot := make([]byte, 512)
	boot[510], boot[511] = 0x55, 0xAA
	if err := card.WriteSectors(128, boot); err != nil {
		return nil, err
	}
	return card, nil
}

// simBaro answers the MS5607 protocol with the datasheet example values.
func simBaro() platform.TxFunc {
	prom := [8]uint16{0x3132, 46372, 43981, 29059, 27842, 31553, 28165, 0x0008}
	var lastConv byte
	return func(addr uint16, w, r []byte) error {
		if len(w) == 0 {
			return nil
		}
		switch {
		case w[0] >= 0xA0 && w[0] <= 0xAE:
			word := prom[(w[0]-0xA0)/2]
			r[0] = byte(word >> 8)
			r[1] = byte(word)
		case w[0] >= 0x40 && w[0] <= 0x58:
			lastConv = w[0] & 0xF0
		case w[0] == 0x00:
			v := uint32(6465444) // D1, pressure
			if lastConv == 0x50 {
				v = 8077636 // D2, temperature
			}
			r[0] = byte(v >> 16)
			r[1] = byte(v >> 8)
			r[2] = byte(v)
		}
		return nil
	}
}

func main() {
	card, err := simCard()
	if err != nil {
		fmt.Fprintln(os.Stderr, "card image:", err)
		os.Exit(1)
	}

	b := bus.NewBus(32)
	reg := blockdev.NewRegistry()
	tab := mount.NewTable(reg)
	platform.RegisterHostDrivers(tab)
	pins := platform.DefaultPinFactory()
	i2c := platform.NewI2CFactoryWith(map[string]drivers.I2C{
		"i2c1": &platform.HostI2C{Handler: simBaro()},
		"i2c2": &platform.HostI2C{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = context.WithValue(ctx, config.CtxBoardKey, "josh")

	// Console tap on everything the board publishes.
	tap := b.NewConnection("console")
	boardSub := tap.Subscribe(bus.T("board", "#"))
	go func() {
		for msg := range boardSub.Channel() {
			fmt.Printf("%-40v %+v\n", msg.Topic, msg.Payload)
		}
	}()

	svc := bringup.New(bringup.Deps{
		Controller: &platform.HostSDMMC{Card: card},
		Registry:   reg,
		Mounts:     tab,
		PinFactory: pins,
		I2CFactory: i2c,
		Pins: bringup.Pins{
			LEDStarted: josh.PinLEDStarted,
			LEDPanic:   josh.PinLEDPanic,
			LEDEject:   josh.PinLEDEject,
			CardDetect: josh.PinSDCardDetect,
			Buzzer:     josh.PinBuzzer,
		},
		Slot:  josh.SDIOSlot,
		Minor: josh.SDIOMinor,
	})
	if err := svc.Start(ctx, b.NewConnection("bringup")); err != nil {
		fmt.Fprintln(os.Stderr, "bringup:", err)
		os.Exit(1)
	}

	hb := &heartbeat.Service{Pins: pins}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		fmt.Fprintln(os.Stderr, "heartbeat:", err)
		os.Exit(1)
	}

	bs := &baro.Service{I2C: i2c, Interval: 500 * time.Millisecond}
	if err := bs.Start(ctx, b.NewConnection("baro")); err != nil {
		fmt.Fprintln(os.Stderr, "baro:", err)
		os.Exit(1)
	}

	// Config last: its retained messages kick the other services off.
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	time.Sleep(demoRuntime)

	state := tap.Subscribe(bus.T("board", "state"))
	select {
	case msg := <-state.Channel():
		if st, ok := msg.Payload.(types.BoardState); ok && st.Level != "ready" {
			fmt.Fprintln(os.Stderr, "bring-up did not complete:", st.Status, st.Error)
			os.Exit(1)
		}
	case <-time.After(time.Second):
		fmt.Fprintln(os.Stderr, "no board state published")
		os.Exit(1)
	}

	fmt.Println("mounts:")
	for _, m := range tab.Mounts() {
		fmt.Printf("  %-12s %-8s %s\n", m.Target, m.FSType, m.Source)
	}
	fmt.Println("devices:", reg.Names())
}
