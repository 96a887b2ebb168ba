// Package josh describes the josh STM32H7 flight-controller board:
// pin assignments, bus wiring and the storage layout its bring-up expects.
package josh

import "flightcode-go/types"

// GPIO numbering is port*16+pin (PA0 = 0, PB0 = 16, ...).
const (
	// Three software-controllable LEDs.
	PinLEDStarted = 0*16 + 4 // PA4, green: startup complete
	PinLEDPanic   = 0*16 + 5 // PA5, red: panic state
	PinLEDEject   = 3*16 + 3 // PD3, green: SD card safe to remove

	// Arming buzzer.
	PinBuzzer = 4*16 + 13 // PE13

	// SD/TF card-detect (active low: low = card present).
	PinSDCardDetect = 2*16 + 13 // PC13
)

// SDIO slot wiring.
const (
	SDIOSlot  = 0
	SDIOMinor = 0
)

// BlockDeviceName is the device node the SDMMC controller registers.
const BlockDeviceName = "/dev/mmcsd0"

// Mount points.
const (
	UserDataMountPoint  = "/mnt/usrfs"
	PowerSafeMountPoint = "/mnt/pwrfs"
	ProcMountPoint      = "/proc"
)

// I2CPlan mirrors one configured I²C bus instance.
type I2CPlan struct {
	ID  string // e.g. "i2c1"
	SDA int    // GPIO number
	SCL int    // GPIO number
	Hz  uint32
}

// ResourcePlan specifies wiring and operating parameters for the board.
// Providers consume this plan to instantiate resource owners.
type ResourcePlan struct {
	I2C []I2CPlan
}

// Plan returns the josh wiring.
func Plan() ResourcePlan {
	return ResourcePlan{
		I2C: []I2CPlan{
			{ID: "i2c1", SDA: 1*16 + 7, SCL: 1*16 + 6, Hz: 400_000}, // PB7/PB6
			{ID: "i2c2", SDA: 1*16 + 11, SCL: 1*16 + 10, Hz: 400_000},
		},
	}
}

// DefaultBringupConfig is the compiled-in bring-up input for josh. The config
// service can override it per deployment; tests substitute their own paths.
func DefaultBringupConfig() types.BringupConfig {
	return types.BringupConfig{
		Storage: types.StorageConfig{
			Device:     BlockDeviceName,
			Partitions: []int{0, 1},
			UserData: types.MountSpec{
				Index:  0,
				Path:   UserDataMountPoint,
				FSType: "vfat",
			},
			PowerSafe: types.MountSpec{
				Index:   1,
				Path:    PowerSafeMountPoint,
				FSType:  "littlefs",
				Options: "autoformat",
			},
			EnablePowerSafe: false,
		},
		ProcPath: ProcMountPoint,
		Baro: &types.BaroConfig{
			Bus:   "i2c1",
			Model: "ms5607",
		},
		I2CBuses: []string{"i2c1", "i2c2"},
	}
}
