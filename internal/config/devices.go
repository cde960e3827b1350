package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceNames is an immutable id -> display name table shared with the
// report writers.
type DeviceNames struct {
	names map[uint32]string
}

var defaultDeviceNames = map[uint32]string{
	0x21A688DB: "Device 1",
	0x3543C42E: "Device 2",
}

// Name returns the display name of id, or its 0x%08X form.
func (d DeviceNames) Name(id uint32) string {
	if n, ok := d.names[id]; ok {
		return n
	}
	return FormatDeviceID(id)
}

// Len returns the number of named devices.
func (d DeviceNames) Len() int { return len(d.names) }

// FormatDeviceID renders an id the way reports and config keys spell it.
func FormatDeviceID(id uint32) string {
	return fmt.Sprintf("0x%08X", id)
}

func parseDeviceID(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: %w", s, err)
	}
	return uint32(v), nil
}

// GetDeviceNames merges the configured names over the built-in table.
// Invalid keys are rejected by Validate and ignored here.
func (c *AnalysisConfig) GetDeviceNames() DeviceNames {
	names := make(map[uint32]string, len(defaultDeviceNames)+len(c.DeviceNames))
	for id, n := range defaultDeviceNames {
		names[id] = n
	}
	for key, n := range c.DeviceNames {
		if id, err := parseDeviceID(key); err == nil {
			names[id] = n
		}
	}
	return DeviceNames{names: names}
}
