package types

import "encoding/json"

// ---- Bring-up configuration ----
//
// Supplied on the "config/bringup" bus topic, either as a typed value
// (tests, mains) or as a decoded JSON object (config service).

// MountSpec binds one partition index to a filesystem and mount point.
type MountSpec struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	FSType  string `json:"fstype"`
	Options string `json:"options,omitempty"` // driver-specific, e.g. "autoformat"
}

// StorageConfig drives the storage bring-up sequence.
type StorageConfig struct {
	Device          string    `json:"device"`     // parent block device, e.g. "/dev/mmcsd0"
	Partitions      []int     `json:"partitions"` // expected indices, ordered
	UserData        MountSpec `json:"user_data"`  // mandatory mount
	PowerSafe       MountSpec `json:"power_safe"` // optional mount
	EnablePowerSafe bool      `json:"enable_power_safe"`
}

// BaroConfig registers the barometer on an I²C bus.
type BaroConfig struct {
	Bus   string `json:"bus"`   // e.g. "i2c1"
	Addr  uint16 `json:"addr"`  // 0 selects the driver default
	Model string `json:"model"` // "ms5607" or "ms5611"
}

// BringupConfig is the full bring-up input.
type BringupConfig struct {
	Storage  StorageConfig `json:"storage"`
	ProcPath string        `json:"proc_path,omitempty"` // "" disables the procfs mount
	Baro     *BaroConfig   `json:"baro,omitempty"`      // nil disables sensor registration
	I2CBuses []string      `json:"i2c_buses,omitempty"` // diagnostic bus registration
}

// HeartbeatConfig is supplied on "config/heartbeat".
type HeartbeatConfig struct {
	IntervalMS int `json:"interval_ms"`
	Pin        int `json:"pin"` // status LED pin
}

// DecodePayload converts a bus payload into dst. Typed values pass through
// a JSON round-trip so map[string]any from the config service decodes the
// same way as raw bytes.
func DecodePayload[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case *T:
		*dst = *v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
