package baro

import (
	"context"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"flightcode-go/bus"
	"flightcode-go/platform"
	"flightcode-go/types"
)

// sensorSim answers the MS5607 protocol with the datasheet example values.
// Conversions track the last trigger so D1 and D2 read back correctly in
// any order. The first zeroReads ADC reads return 0, as the device does
// when collected too early.
type sensorSim struct {
	mu        sync.Mutex
	prom      [8]uint16
	lastConv  byte
	zeroReads int
}

func newSensorSim(zeroReads int) *sensorSim {
	return &sensorSim{
		prom:      [8]uint16{0x3132, 46372, 43981, 29059, 27842, 31553, 28165, 0x0008},
		zeroReads: zeroReads,
	}
}

func (s *sensorSim) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(w) == 0 {
		return nil
	}
	switch {
	case w[0] >= 0xA0 && w[0] <= 0xAE:
		word := s.prom[(w[0]-0xA0)/2]
		r[0] = byte(word >> 8)
		r[1] = byte(word)
	case w[0] >= 0x40 && w[0] <= 0x58:
		s.lastConv = w[0] & 0xF0
	case w[0] == 0x00:
		var v uint32
		if s.zeroReads > 0 {
			s.zeroReads--
		} else if s.lastConv == 0x50 {
			v = 8077636 // D2, temperature
		} else {
			v = 6465444 // D1, pressure
		}
		r[0] = byte(v >> 16)
		r[1] = byte(v >> 8)
		r[2] = byte(v)
	}
	return nil
}

func startService(t *testing.T, sim *sensorSim) *bus.Bus {
	t.Helper()
	b := bus.NewBus(16)
	i2c := platform.NewI2CFactoryWith(map[string]drivers.I2C{"i2c1": sim})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := &Service{I2C: i2c, Interval: 20 * time.Millisecond}
	if err := svc.Start(ctx, b.NewConnection("baro")); err != nil {
		t.Fatal(err)
	}

	pub := b.NewConnection("config")
	pub.Publish(pub.NewMessage(bus.T("config", "bringup"), types.BringupConfig{
		Baro: &types.BaroConfig{Bus: "i2c1", Model: "ms5607"},
	}, true))
	return b
}

func waitSample(t *testing.T, b *bus.Bus) types.BaroSample {
	t.Helper()
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T("board", "sensor", "baro0", "value"))
	defer sub.Unsubscribe()
	select {
	case msg := <-sub.Channel():
		return msg.Payload.(types.BaroSample)
	case <-time.After(2 * time.Second):
		t.Fatal("no sample published")
		return types.BaroSample{}
	}
}

func TestPublishesCompensatedSamples(t *testing.T) {
	b := startService(t, newSensorSim(0))
	s := waitSample(t, b)
	if s.TempCentiC != 2000 || s.PressurePa != 110002 {
		t.Fatalf("sample %+v, want 20.00degC / 110002 Pa", s)
	}
	if s.TS == 0 {
		t.Fatal("sample missing timestamp")
	}
}

func TestRetriggersAfterPrematureRead(t *testing.T) {
	// The first two ADC reads return 0: the service must restart those
	// conversions and still deliver a correct sample.
	b := startService(t, newSensorSim(2))
	s := waitSample(t, b)
	if s.TempCentiC != 2000 || s.PressurePa != 110002 {
		t.Fatalf("sample %+v after retriggers", s)
	}
}

func TestNoBarometerConfigured(t *testing.T) {
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &Service{Interval: 10 * time.Millisecond}
	if err := svc.Start(ctx, b.NewConnection("baro")); err != nil {
		t.Fatal(err)
	}
	pub := b.NewConnection("config")
	pub.Publish(pub.NewMessage(bus.T("config", "bringup"), types.BringupConfig{}, true))

	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T("board", "sensor", "baro0", "value"))
	defer sub.Unsubscribe()
	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected sample: %+v", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}
