// Package bringup sequences board initialisation: diagnostic bus checks,
// sensor registration, the procfs mount, SDMMC controller start and the
// storage mount sequence. Every step reports onto the message bus; most
// failures are logged and skipped so a broken peripheral does not take the
// whole board down. Exactly two conditions abort bring-up: the storage
// controller failing to initialise and the mandatory user-data mount
// failing.
package bringup

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"flightcode-go/bus"
	"flightcode-go/drivers/ms56xx"
	"flightcode-go/errcode"
	"flightcode-go/services/storage"
	"flightcode-go/services/storage/blockdev"
	"flightcode-go/services/storage/mount"
	"flightcode-go/types"
)

var (
	topicConfig     = bus.Topic{"config", "bringup"}
	topicBoardState = bus.Topic{"board", "state"}
)

// StorageController brings the SDMMC slot online and probes the card.
// A nil device with a nil error means the slot is empty.
type StorageController interface {
	Init(slot, minor int) (blockdev.Device, error)
}

// Pins names the board lines bring-up drives. A negative number disables
// the line.
type Pins struct {
	LEDStarted int
	LEDPanic   int
	LEDEject   int // lit whenever the card is safe to remove
	CardDetect int // active low: low level means card present
	Buzzer     int
}

// Deps carries the injected board resources.
type Deps struct {
	Controller StorageController
	Registry   *blockdev.Registry
	Mounts     *mount.Table
	PinFactory types.PinFactory
	I2CFactory types.I2CBusFactory
	Pins       Pins
	Slot       int
	Minor      int
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Start launches bring-up once the configuration arrives on the bus.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	select {
	case <-ctx.Done():
		return
	case msg := <-cfgSub.Channel():
		var cfg types.BringupConfig
		if err := types.DecodePayload(msg.Payload, &cfg); err != nil {
			println("Error: bringup config undecodable:", err.Error())
			s.publishState(conn, "failed", "bad_config", err)
			return
		}
		if err := s.run(conn, cfg); err != nil {
			println("Error: bringup aborted:", err.Error())
		}
	}
}

// run executes the bring-up sequence. The returned error is one of the two
// fatal conditions; everything else has already been logged and published.
func (s *Service) run(conn *bus.Connection, cfg types.BringupConfig) error {
	started := s.pin(s.deps.Pins.LEDStarted, false)
	panicLED := s.pin(s.deps.Pins.LEDPanic, false)

	s.publishState(conn, "booting", "start", nil)

	s.checkBuses(conn, cfg.I2CBuses)
	s.registerBaro(conn, cfg.Baro)
	s.mountProc(conn, cfg.ProcPath)

	if err := s.startStorage(conn, cfg); err != nil {
		s.publishState(conn, "failed", string(errcode.Of(err)), err)
		s.signalPanic(panicLED)
		return err
	}

	s.publishState(conn, "ready", "complete", nil)
	if started != nil {
		started.Set(true)
	}
	return nil
}

// startStorage covers the steps that can abort bring-up: controller init
// and the storage mount sequence. Card absence is not one of them.
func (s *Service) startStorage(conn *bus.Connection, cfg types.BringupConfig) error {
	dev, err := s.deps.Controller.Init(s.deps.Slot, s.deps.Minor)
	if err != nil {
		err = errors.Wrap(&errcode.E{C: errcode.InitFailed, Op: "sdmmc", Err: err}, "storage controller")
		s.publishStep(conn, "sdmmc", err)
		return err
	}
	s.publishStep(conn, "sdmmc", nil)

	if !s.cardPresent(dev) {
		println("Warn: no card detected, storage skipped")
		if eject := s.pin(s.deps.Pins.LEDEject, false); eject != nil {
			eject.Set(true)
		}
		s.publishStep(conn, "storage", errcode.NoMedia)
		return nil
	}
	if err := s.deps.Registry.Register(cfg.Storage.Device, s.deps.Minor, dev); err != nil {
		err = errors.Wrap(&errcode.E{C: errcode.InitFailed, Op: "register", Err: err}, cfg.Storage.Device)
		s.publishStep(conn, "storage", err)
		return err
	}

	seq, err := storage.NewSequencer(cfg.Storage, s.deps.Registry, s.deps.Mounts)
	if err != nil {
		s.publishStep(conn, "storage", err)
		return err
	}
	report, err := seq.Run()
	s.publishStorageReport(conn, cfg.Storage, report)
	s.publishStep(conn, "storage", err)
	return err
}

// cardPresent gates storage on the card-detect line when one is wired,
// falling back to the controller's probe result.
func (s *Service) cardPresent(dev blockdev.Device) bool {
	if dev == nil {
		return false
	}
	cd := s.deps.Pins.CardDetect
	if cd < 0 || s.deps.PinFactory == nil {
		return true
	}
	pin, ok := s.deps.PinFactory.ByNumber(cd)
	if !ok {
		return true
	}
	if err := pin.ConfigureInput(); err != nil {
		return true
	}
	return !pin.Get() // active low
}

func (s *Service) checkBuses(conn *bus.Connection, ids []string) {
	for _, id := range ids {
		var err error
		if s.deps.I2CFactory == nil {
			err = errors.Wrap(errcode.UnknownBus, id)
		} else if _, ok := s.deps.I2CFactory.ByID(id); !ok {
			err = errors.Wrap(errcode.UnknownBus, id)
		}
		if err != nil {
			println("Warn: i2c bus missing:", id)
		}
		s.publishStep(conn, "i2c/"+id, err)
	}
}

func (s *Service) registerBaro(conn *bus.Connection, cfg *types.BaroConfig) {
	if cfg == nil {
		return
	}
	err := s.baroOnline(conn, cfg)
	if err != nil {
		println("Warn: barometer offline:", err.Error())
	}
	s.publishStep(conn, "baro", err)
}

func (s *Service) baroOnline(conn *bus.Connection, cfg *types.BaroConfig) error {
	if s.deps.I2CFactory == nil {
		return errors.Wrap(errcode.UnknownBus, cfg.Bus)
	}
	i2c, ok := s.deps.I2CFactory.ByID(cfg.Bus)
	if !ok {
		return errors.Wrap(errcode.UnknownBus, cfg.Bus)
	}

	d := ms56xx.New(i2c)
	dcfg := ms56xx.Config{Address: cfg.Addr}
	if cfg.Model == "ms5611" {
		dcfg.Model = ms56xx.ModelMS5611
	}
	if err := d.Configure(dcfg); err != nil {
		return err
	}

	conn.Publish(conn.NewMessage(bus.T("board", "sensor", "baro0", "info"), types.SensorInfo{
		SchemaVersion: 1,
		Driver:        cfg.Model,
		Bus:           cfg.Bus,
		Addr:          d.Address,
	}, true))
	return nil
}

func (s *Service) mountProc(conn *bus.Connection, path string) {
	if path == "" {
		return
	}
	err := s.deps.Mounts.Mount("", path, "procfs", 0, "")
	if err != nil {
		println("Warn: procfs mount failed:", err.Error())
	}
	s.publishStep(conn, "procfs", err)
}

func (s *Service) publishStorageReport(conn *bus.Connection, cfg types.StorageConfig, r storage.Report) {
	for _, req := range r.Requests {
		ps := types.PartitionStatus{
			Index:  req.Index,
			Found:  req.Status == storage.StatusFound,
			Device: req.Device,
			TS:     nowMS(),
		}
		if req.Err != nil {
			ps.Error = string(errcode.Of(req.Err))
		}
		conn.Publish(conn.NewMessage(bus.T("board", "storage", "part", req.Index), ps, true))
	}

	s.publishMount(conn, cfg.UserData, r.UserDataErr)
	if cfg.EnablePowerSafe {
		s.publishMount(conn, cfg.PowerSafe, r.PowerSafeErr)
	}
}

func (s *Service) publishMount(conn *bus.Connection, spec types.MountSpec, err error) {
	ms := types.MountStatus{
		Target: spec.Path,
		FSType: spec.FSType,
		OK:     err == nil,
		TS:     nowMS(),
	}
	if err != nil {
		ms.Error = string(errcode.Of(err))
	}
	conn.Publish(conn.NewMessage(bus.T("board", "storage", "mount", spec.Path), ms, true))
}

func (s *Service) publishStep(conn *bus.Connection, step string, err error) {
	st := types.StepStatus{Step: step, OK: err == nil, TS: nowMS()}
	if err != nil {
		st.Code = string(errcode.Of(err))
	}
	conn.Publish(conn.NewMessage(bus.T("board", "step", step), st, true))
}

func (s *Service) publishState(conn *bus.Connection, level, status string, err error) {
	st := types.BoardState{Level: level, Status: status, TS: nowMS()}
	if err != nil {
		st.Error = err.Error()
	}
	conn.Publish(conn.NewMessage(topicBoardState, st, true))
}

func (s *Service) signalPanic(panicLED types.Pin) {
	if panicLED != nil {
		panicLED.Set(true)
	}
	if buzzer := s.pin(s.deps.Pins.Buzzer, false); buzzer != nil {
		buzzer.Set(true)
	}
}

// pin fetches and configures an output line, or nil when unavailable.
func (s *Service) pin(number int, initial bool) types.Pin {
	if number < 0 || s.deps.PinFactory == nil {
		return nil
	}
	p, ok := s.deps.PinFactory.ByNumber(number)
	if !ok {
		println("Warn: pin unavailable:", number)
		return nil
	}
	if err := p.ConfigureOutput(initial); err != nil {
		return nil
	}
	return p
}

func nowMS() int64 { return time.Now().UnixMilli() }
