package renderer

import (
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// DeviceContext is the root of the ownership chain. Everything else holds
// a reference to it and it is destroyed last.
type DeviceContext struct {
	dev    driver.Device
	limits driver.Limits
}

func NewDeviceContext(dev driver.Device) *DeviceContext {
	dc := &DeviceContext{
		dev:    dev,
		limits: dev.Limits(),
	}
	core.LogInfo("Using device %q (uniform alignment %d, push constants %d bytes)",
		dev.Name(), dc.limits.MinUniformBufferOffsetAlignment, dc.limits.MaxPushConstantsSize)
	return dc
}

func (dc *DeviceContext) Device() driver.Device {
	return dc.dev
}

func (dc *DeviceContext) Limits() driver.Limits {
	return dc.limits
}

// PadUniformBufferSize rounds size up to the minimum dynamic uniform
// buffer offset alignment of the device.
func (dc *DeviceContext) PadUniformBufferSize(size uint64) uint64 {
	return PadSize(size, dc.limits.MinUniformBufferOffsetAlignment)
}

// PadSize rounds size up to a multiple of alignment, which must be zero or
// a power of two.
func PadSize(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

func (dc *DeviceContext) Destroy() {
	if dc.dev == nil {
		return
	}
	dc.dev.Destroy()
	dc.dev = nil
}

// LogDiagnostic is the default driver.DiagnosticHandler.
func LogDiagnostic(d driver.Diagnostic) {
	if d.Benign() {
		return
	}
	switch d.Severity {
	case driver.SeverityError:
		core.LogError("%s", d)
	case driver.SeverityWarning:
		core.LogWarn("%s", d)
	case driver.SeverityInfo:
		core.LogInfo("%s", d)
	default:
		core.LogDebug("%s", d)
	}
}
