package ms56xx

import (
	"testing"
)

// fakeI2C emulates the sensor's command protocol for host tests.
type fakeI2C struct {
	prom [8]uint16
	adc  []uint32 // successive ADC results
	cmds []byte
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if len(w) > 0 {
		f.cmds = append(f.cmds, w[0])
		switch {
		case w[0] >= cmdPROMRead && w[0] <= cmdPROMRead+14:
			word := f.prom[(w[0]-cmdPROMRead)/2]
			r[0] = byte(word >> 8)
			r[1] = byte(word)
		case w[0] == cmdADCRead:
			var v uint32
			if len(f.adc) > 0 {
				v = f.adc[0]
				f.adc = f.adc[1:]
			}
			r[0] = byte(v >> 16)
			r[1] = byte(v >> 8)
			r[2] = byte(v)
		}
	}
	return nil
}

// Calibration words from the datasheet examples, CRC nibble in word 7.
var (
	prom5607 = [8]uint16{0x3132, 46372, 43981, 29059, 27842, 31553, 28165, 0x0008}
	prom5611 = [8]uint16{0x3132, 40127, 36924, 23317, 23282, 33464, 28312, 0x0000}
)

func TestConfigureReadsPROM(t *testing.T) {
	bus := &fakeI2C{prom: prom5607}
	d := New(bus)
	if err := d.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if d.Address != Address1 {
		t.Fatalf("default address %#x", d.Address)
	}
	if d.prom[1] != 46372 {
		t.Fatalf("prom not loaded: %v", d.prom)
	}
	if bus.cmds[0] != cmdReset {
		t.Fatalf("first command %#x, want reset", bus.cmds[0])
	}
}

func TestConfigureBadCRC(t *testing.T) {
	prom := prom5607
	prom[3] ^= 0x0040 // corrupt a calibration word
	bus := &fakeI2C{prom: prom}
	d := New(bus)
	if err := d.Configure(); err != ErrBadCRC {
		t.Fatalf("expected ErrBadCRC, got %v", err)
	}
}

func TestCompensateMS5607(t *testing.T) {
	bus := &fakeI2C{prom: prom5607}
	d := New(bus)
	if err := d.Configure(Config{Model: ModelMS5607}); err != nil {
		t.Fatal(err)
	}
	temp, press := d.Compensate(6465444, 8077636)
	if temp != 2000 {
		t.Fatalf("temp = %d, want 2000 (20.00degC)", temp)
	}
	if press != 110002 {
		t.Fatalf("press = %d, want 110002 Pa", press)
	}
}

func TestCompensateMS5611(t *testing.T) {
	bus := &fakeI2C{prom: prom5611}
	d := New(bus)
	if err := d.Configure(Config{Model: ModelMS5611}); err != nil {
		t.Fatal(err)
	}
	temp, press := d.Compensate(9085466, 8569150)
	if temp != 2007 {
		t.Fatalf("temp = %d, want 2007 (20.07degC)", temp)
	}
	if press != 100009 {
		t.Fatalf("press = %d, want 100009 Pa", press)
	}
}

func TestReadRunsBothConversions(t *testing.T) {
	bus := &fakeI2C{prom: prom5607, adc: []uint32{8077636, 6465444}} // D2 then D1
	d := New(bus)
	if err := d.Configure(Config{OSR: OSR256}); err != nil {
		t.Fatal(err)
	}
	s, err := d.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.TempCentiC != 2000 || s.PressurePa != 110002 {
		t.Fatalf("sample %+v", s)
	}

	// conversion commands carry the OSR offset (OSR256 => base command)
	var sawD2, sawD1 bool
	for _, c := range bus.cmds {
		if c == cmdConvD2 {
			sawD2 = true
		}
		if c == cmdConvD1 {
			sawD1 = true
		}
	}
	if !sawD2 || !sawD1 {
		t.Fatalf("conversion commands missing: %#v", bus.cmds)
	}
}

func TestCollectWithoutTrigger(t *testing.T) {
	bus := &fakeI2C{prom: prom5607}
	d := New(bus)
	if err := d.Configure(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CollectADC(); err != ErrNoConv {
		t.Fatalf("expected ErrNoConv, got %v", err)
	}
}

func TestCollectZeroADC(t *testing.T) {
	bus := &fakeI2C{prom: prom5607, adc: []uint32{0}}
	d := New(bus)
	if err := d.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := d.TriggerTemperature(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CollectADC(); err != ErrProtocol {
		t.Fatalf("expected ErrProtocol on premature read, got %v", err)
	}
}

func TestCRC4RejectsCorruption(t *testing.T) {
	if got := crc4(prom5607); got != 8 {
		t.Fatalf("crc4 = %d, want 8", got)
	}
	bad := prom5607
	bad[2]++
	if crc4(bad) == byte(bad[7]&0x0F) {
		t.Fatal("corrupted PROM must not validate")
	}
}
