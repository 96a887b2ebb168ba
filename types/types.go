package types

// ---- Board state (retained on board/state) ----

type BoardState struct {
	Level  string `json:"level"`  // "booting", "ready", "failed"
	Status string `json:"status"` // freeform short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// StepStatus is published per bring-up step on board/step/<name>.
type StepStatus struct {
	Step string `json:"step"`
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"` // errcode string when !OK
	TS   int64  `json:"ts_ms"`
}

// ---- Storage status (retained on board/storage/...) ----

// PartitionStatus mirrors one partition request's terminal state.
type PartitionStatus struct {
	Index  int    `json:"index"`
	Found  bool   `json:"found"`
	Device string `json:"device,omitempty"` // registered child name when found
	Error  string `json:"error,omitempty"`  // registration failure, if any
	TS     int64  `json:"ts_ms"`
}

// MountStatus is retained per mount target.
type MountStatus struct {
	Target string `json:"target"`
	FSType string `json:"fstype"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// ---- Sensor info (retained on board/sensor/<id>/info) ----

type SensorInfo struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Bus           string `json:"bus"`
	Addr          uint16 `json:"addr"`
}

// BaroSample is published on board/sensor/<id>/value.
type BaroSample struct {
	TempCentiC int32 `json:"temp_cc"`  // centi-degrees Celsius
	PressurePa int32 `json:"press_pa"` // Pascal
	TS         int64 `json:"ts_ms"`
}
