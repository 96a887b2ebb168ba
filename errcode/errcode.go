package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"
	Timeout       Code = "timeout"

	// Storage namespace
	NotFound       Code = "not_found"       // partition/device absent; expected, non-fatal
	DeviceExists   Code = "device_exists"   // name already registered
	RangeInvalid   Code = "range_invalid"   // partition range outside parent device
	RegisterFailed Code = "register_failed" // block-partition registrar rejected the request
	MountFailed    Code = "mount_failed"
	AlreadyMounted Code = "already_mounted"
	NoMedia        Code = "no_media" // card-detect reports no card
	IOError        Code = "io_error"

	// Bring-up
	InitFailed Code = "init_failed" // storage controller init

	UnknownBus Code = "unknown_bus"
	UnknownPin Code = "unknown_pin"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if cause := u.Unwrap(); cause != nil {
			if c := Of(cause); c != Error {
				return c
			}
		}
	}
	return Error
}

// Is reports whether err carries the given code.
func Is(err error, c Code) bool { return Of(err) == c }
