// Package heartbeat toggles the status LED on a timer so a bench observer
// can tell a hung board from a running one. The interval follows the
// "config/heartbeat" bus topic.
package heartbeat

import (
	"context"
	"time"

	"flightcode-go/bus"
	"flightcode-go/types"
	"flightcode-go/x/mathx"
)

var topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}

const (
	defaultInterval = 1 * time.Second
	minInterval     = 50 * time.Millisecond
	maxInterval     = 1 * time.Minute
)

type Service struct {
	Pins types.PinFactory
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	var led types.Pin

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			if led != nil {
				led.Toggle()
			} else {
				println("Info: heartbeat")
			}
		case msg := <-cfgSub.Channel():
			var cfg types.HeartbeatConfig
			if err := types.DecodePayload(msg.Payload, &cfg); err != nil {
				println("Warn: heartbeat config undecodable:", err.Error())
				continue
			}
			if cfg.IntervalMS > 0 {
				iv := mathx.ClampDuration(time.Duration(cfg.IntervalMS)*time.Millisecond, minInterval, maxInterval)
				tick.Reset(iv)
			}
			if s.Pins != nil {
				if p, ok := s.Pins.ByNumber(cfg.Pin); ok {
					if err := p.ConfigureOutput(false); err == nil {
						led = p
					}
				}
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
