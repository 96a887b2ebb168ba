package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: board ID (same value placed in ctx under CtxBoardKey)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

const cfgJosh = `{
  "bringup": {
    "storage": {
      "device": "/dev/mmcsd0",
      "partitions": [0, 1],
      "user_data": {"index": 0, "path": "/mnt/usrfs", "fstype": "vfat"},
      "power_safe": {"index": 1, "path": "/mnt/pwrfs", "fstype": "littlefs", "options": "autoformat"},
      "enable_power_safe": false
    },
    "proc_path": "/proc",
    "baro": {"bus": "i2c1", "model": "ms5607"},
    "i2c_buses": ["i2c1", "i2c2"]
  },
  "heartbeat": {
    "interval_ms": 1000,
    "pin": 4
  }
}`

var embeddedConfigs = map[string][]byte{
	"josh": []byte(cfgJosh),
}
