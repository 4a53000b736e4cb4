package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults applied when a configuration row is first created.
const (
	DefaultXParameter = 5
	DefaultYParameter = 10
	DefaultDeviceID   = "mobile-device"

	// MaxIntervalMinutes bounds x_parameter and y_parameter (one week).
	MaxIntervalMinutes = 7 * 24 * 60
	// MaxDeviceIDLen matches the configurations.device_id column.
	MaxDeviceIDLen     = 255
)

// ErrInvalidConfig is returned when a patch carries an out-of-range value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Configuration holds the tunables for one owner. XParameter is the GPS collection
// interval in minutes; YParameter is the sync interval in minutes.
type Configuration struct {
	ID         int64
	Owner      string
	XParameter int
	YParameter int
	DeviceID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Default returns the default configuration for owner.
func Default(owner string) *Configuration {
	return &Configuration{
		Owner:      owner,
		XParameter: DefaultXParameter,
		YParameter: DefaultYParameter,
		DeviceID:   DefaultDeviceID,
	}
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	XParameter *int    `json:"x_parameter,omitempty"`
	YParameter *int    `json:"y_parameter,omitempty"`
	DeviceID   *string `json:"device_id,omitempty"`
}

// Validate checks the supplied fields. Intervals must be in 1..MaxIntervalMinutes and
// device_id non-empty and at most MaxDeviceIDLen characters.
func (p Patch) Validate() error {
	if err := validateInterval("x_parameter", p.XParameter); err != nil {
		return err
	}
	if err := validateInterval("y_parameter", p.YParameter); err != nil {
		return err
	}
	if p.DeviceID != nil {
		id := strings.TrimSpace(*p.DeviceID)
		if id == "" {
			return fmt.Errorf("%w: device_id must not be empty", ErrInvalidConfig)
		}
		if len(id) > MaxDeviceIDLen {
			return fmt.Errorf("%w: device_id must be at most %d characters", ErrInvalidConfig, MaxDeviceIDLen)
		}
	}
	return nil
}

func validateInterval(name string, v *int) error {
	if v == nil {
		return nil
	}
	if *v <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
	}
	if *v > MaxIntervalMinutes {
		return fmt.Errorf("%w: %s must be at most %d", ErrInvalidConfig, name, MaxIntervalMinutes)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.XParameter == nil && p.YParameter == nil && p.DeviceID == nil
}

// Apply copies the non-nil fields of p onto c.
func (p Patch) Apply(c *Configuration) {
	if p.XParameter != nil {
		c.XParameter = *p.XParameter
	}
	if p.YParameter != nil {
		c.YParameter = *p.YParameter
	}
	if p.DeviceID != nil {
		c.DeviceID = strings.TrimSpace(*p.DeviceID)
	}
}

// Ptr returns a pointer to v. Convenient for building patches.
func Ptr[T any](v T) *T {
	return &v
}
