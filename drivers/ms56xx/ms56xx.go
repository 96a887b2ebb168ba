// Package ms56xx provides a driver for the MS5607/MS5611 barometric
// pressure sensors. It exposes a two-phase measurement API:
//
//	d.TriggerTemperature()        // start a D2 conversion (fast)
//	v, err := d.CollectADC()      // fetch after ConvDelay()
//
// For convenience, d.Read() runs both conversions with bounded sleeps and
// returns compensated values.
//
// The driver avoids floating-point: temperatures are centi-°C and pressures
// Pascal, computed with the integer pipeline from the datasheet.
package ms56xx

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C addresses, selected by the CSB pin.
const (
	Address0 = 0x77 // CSB low
	Address1 = 0x76 // CSB high
)

// Model selects the compensation pipeline.
type Model uint8

const (
	ModelMS5607 Model = iota
	ModelMS5611
)

// OSR is the oversampling ratio for one conversion. The zero value selects
// OSR4096.
type OSR uint8

const (
	OSR256 OSR = 1 + iota
	OSR512
	OSR1024
	OSR2048
	OSR4096
)

// ConvDelay is the worst-case conversion time for the ratio.
func (o OSR) ConvDelay() time.Duration {
	switch o {
	case OSR256:
		return 600 * time.Microsecond
	case OSR512:
		return 1170 * time.Microsecond
	case OSR1024:
		return 2280 * time.Microsecond
	case OSR2048:
		return 4540 * time.Microsecond
	default:
		return 9040 * time.Microsecond
	}
}

// cmdOffset maps the ratio onto the conversion command's low bits.
func (o OSR) cmdOffset() byte {
	if o == 0 {
		o = OSR4096
	}
	return byte(o-1) * 2
}

// Commands (per datasheet).
const (
	cmdReset    = 0x1E
	cmdConvD1   = 0x40 // pressure, + 2*OSR
	cmdConvD2   = 0x50 // temperature, + 2*OSR
	cmdADCRead  = 0x00
	cmdPROMRead = 0xA0 // + 2*word
)

// Errors returned by the driver.
var (
	ErrBadCRC   = errors.New("ms56xx: PROM CRC mismatch")
	ErrProtocol = errors.New("ms56xx: protocol error")
	ErrNoConv   = errors.New("ms56xx: no conversion in flight")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to Address1 (0x76) if zero.
	Address uint16
	// Model defaults to ModelMS5607.
	Model Model
	// OSR defaults to OSR4096.
	OSR OSR
}

// Device wraps an I2C connection to an MS56xx device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg  Config
	prom [8]uint16
	busy bool // a conversion command has been issued
}

// New creates a new MS56xx connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not
// touch the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address1}
}

// Configure resets the device, loads the PROM calibration words and
// validates their CRC.
func (d *Device) Configure(cfg ...Config) error {
	if len(cfg) > 0 {
		d.cfg = cfg[0]
	}
	if d.cfg.Address != 0 {
		d.Address = d.cfg.Address
	}
	if err := d.bus.Tx(d.Address, []byte{cmdReset}, nil); err != nil {
		return err
	}
	// Reset sequence takes 2.8 ms.
	time.Sleep(3 * time.Millisecond)

	var w [2]byte
	for i := 0; i < 8; i++ {
		if err := d.bus.Tx(d.Address, []byte{cmdPROMRead + byte(2*i)}, w[:]); err != nil {
			return err
		}
		d.prom[i] = uint16(w[0])<<8 | uint16(w[1])
	}
	if crc4(d.prom) != byte(d.prom[7]&0x0F) {
		return ErrBadCRC
	}
	return nil
}

// TriggerTemperature starts a D2 conversion.
func (d *Device) TriggerTemperature() error {
	return d.trigger(cmdConvD2)
}

// TriggerPressure starts a D1 conversion.
func (d *Device) TriggerPressure() error {
	return d.trigger(cmdConvD1)
}

func (d *Device) trigger(cmd byte) error {
	if err := d.bus.Tx(d.Address, []byte{cmd + d.cfg.OSR.cmdOffset()}, nil); err != nil {
		return err
	}
	d.busy = true
	return nil
}

// ConvDelay reports how long to wait before CollectADC.
func (d *Device) ConvDelay() time.Duration { return d.cfg.OSR.ConvDelay() }

// CollectADC reads the 24-bit conversion result. Reading ahead of the
// conversion time yields 0, which the device reports as a protocol error.
func (d *Device) CollectADC() (uint32, error) {
	if !d.busy {
		return 0, ErrNoConv
	}
	d.busy = false
	var r [3]byte
	if err := d.bus.Tx(d.Address, []byte{cmdADCRead}, r[:]); err != nil {
		return 0, err
	}
	v := uint32(r[0])<<16 | uint32(r[1])<<8 | uint32(r[2])
	if v == 0 {
		return 0, ErrProtocol
	}
	return v, nil
}

// Sample is one compensated reading.
type Sample struct {
	TempCentiC int32 // centi-degrees Celsius
	PressurePa int32 // Pascal
}

// Read performs a temperature and a pressure conversion back to back and
// returns compensated values.
func (d *Device) Read() (Sample, error) {
	if err := d.TriggerTemperature(); err != nil {
		return Sample{}, err
	}
	time.Sleep(d.ConvDelay())
	d2, err := d.CollectADC()
	if err != nil {
		return Sample{}, err
	}

	if err := d.TriggerPressure(); err != nil {
		return Sample{}, err
	}
	time.Sleep(d.ConvDelay())
	d1, err := d.CollectADC()
	if err != nil {
		return Sample{}, err
	}

	t, p := d.Compensate(d1, d2)
	return Sample{TempCentiC: t, PressurePa: p}, nil
}

// Compensate converts raw D1/D2 readings into centi-°C and Pascal using the
// PROM calibration, including second-order temperature compensation.
func (d *Device) Compensate(d1, d2 uint32) (tempCentiC, pressurePa int32) {
	c1 := int64(d.prom[1])
	c2 := int64(d.prom[2])
	c3 := int64(d.prom[3])
	c4 := int64(d.prom[4])
	c5 := int64(d.prom[5])
	c6 := int64(d.prom[6])

	dT := int64(d2) - c5<<8
	temp := 2000 + (dT*c6)>>23

	var off, sens int64
	if d.cfg.Model == ModelMS5611 {
		off = c2<<16 + (c4*dT)>>7
		sens = c1<<15 + (c3*dT)>>8
	} else {
		off = c2<<17 + (c4*dT)>>6
		sens = c1<<16 + (c3*dT)>>7
	}

	if temp < 2000 {
		t2 := (dT * dT) >> 31
		sq := (temp - 2000) * (temp - 2000)
		var off2, sens2 int64
		if d.cfg.Model == ModelMS5611 {
			off2 = 5 * sq / 2
			sens2 = 5 * sq / 4
			if temp < -1500 {
				lsq := (temp + 1500) * (temp + 1500)
				off2 += 7 * lsq
				sens2 += 11 * lsq / 2
			}
		} else {
			off2 = 61 * sq / 16
			sens2 = 2 * sq
			if temp < -1500 {
				lsq := (temp + 1500) * (temp + 1500)
				off2 += 15 * lsq
				sens2 += 8 * lsq
			}
		}
		temp -= t2
		off -= off2
		sens -= sens2
	}

	p := ((int64(d1)*sens)>>21 - off) >> 15
	return int32(temp), int32(p)
}

// crc4 computes the 4-bit PROM checksum (application note AN520).
func crc4(prom [8]uint16) byte {
	var rem uint16
	crcRead := prom[7]
	prom[7] &= 0xFF00
	for i := 0; i < 16; i++ {
		if i%2 == 1 {
			rem ^= prom[i>>1] & 0x00FF
		} else {
			rem ^= prom[i>>1] >> 8
		}
		for b := 0; b < 8; b++ {
			if rem&0x8000 != 0 {
				rem = rem<<1 ^ 0x3000
			} else {
				rem <<= 1
			}
		}
	}
	prom[7] = crcRead
	return byte(rem >> 12 & 0x0F)
}
