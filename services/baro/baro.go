// Package baro samples the barometric sensor on a timer and publishes the
// compensated readings. Conversions are two-phase (trigger, then collect
// after the conversion delay); a premature or corrupted collect re-triggers
// with backoff rather than failing the cycle outright.
package baro

import (
	"context"
	"time"

	"flightcode-go/bus"
	"flightcode-go/drivers/ms56xx"
	"flightcode-go/types"
)

var (
	topicConfig = bus.Topic{"config", "bringup"}
	topicValue  = bus.Topic{"board", "sensor", "baro0", "value"}
)

const (
	defaultInterval = 1 * time.Second
	retryBackoff    = 15 * time.Millisecond
	maxRetries      = 6
)

type Service struct {
	I2C      types.I2CBusFactory
	Interval time.Duration
}

// Start launches sampling once the board config names a barometer.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	var cfg types.BringupConfig
	select {
	case <-ctx.Done():
		return
	case msg := <-cfgSub.Channel():
		if err := types.DecodePayload(msg.Payload, &cfg); err != nil {
			println("Warn: baro config undecodable:", err.Error())
			return
		}
	}
	if cfg.Baro == nil {
		return
	}
	if s.I2C == nil {
		println("Warn: baro has no I2C factory")
		return
	}
	i2c, ok := s.I2C.ByID(cfg.Baro.Bus)
	if !ok {
		println("Warn: baro bus missing:", cfg.Baro.Bus)
		return
	}

	dev := ms56xx.New(i2c)
	dcfg := ms56xx.Config{Address: cfg.Baro.Addr}
	if cfg.Baro.Model == "ms5611" {
		dcfg.Model = ms56xx.ModelMS5611
	}
	if err := dev.Configure(dcfg); err != nil {
		println("Warn: baro offline:", err.Error())
		return
	}

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			sample, err := s.measure(&dev)
			if err != nil {
				println("Warn: baro sample failed:", err.Error())
				continue
			}
			conn.Publish(conn.NewMessage(topicValue, types.BaroSample{
				TempCentiC: sample.TempCentiC,
				PressurePa: sample.PressurePa,
				TS:         time.Now().UnixMilli(),
			}, true))
		}
	}
}

// measure runs one full temperature-then-pressure cycle.
func (s *Service) measure(dev *ms56xx.Device) (ms56xx.Sample, error) {
	d2, err := convert(dev, dev.TriggerTemperature)
	if err != nil {
		return ms56xx.Sample{}, err
	}
	d1, err := convert(dev, dev.TriggerPressure)
	if err != nil {
		return ms56xx.Sample{}, err
	}
	temp, press := dev.Compensate(d1, d2)
	return ms56xx.Sample{TempCentiC: temp, PressurePa: press}, nil
}

// convert triggers one conversion and collects its result. A zero ADC read
// means the conversion was not finished; the whole conversion restarts,
// since collecting early aborts it on the device too.
func convert(dev *ms56xx.Device, trigger func() error) (uint32, error) {
	for attempt := 0; ; attempt++ {
		if err := trigger(); err != nil {
			return 0, err
		}
		time.Sleep(dev.ConvDelay())
		v, err := dev.CollectADC()
		if err == nil {
			return v, nil
		}
		if err != ms56xx.ErrProtocol || attempt >= maxRetries {
			return 0, err
		}
		time.Sleep(retryBackoff)
	}
}
