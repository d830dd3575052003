package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

const (
	validationLayerName          = "VK_LAYER_KHRONOS_validation"
	portabilityEnumerationName   = "VK_KHR_portability_enumeration"
	portabilityEnumerationBit    = 0x00000001
	physicalDeviceProperties2Ext = "VK_KHR_get_physical_device_properties2"
)

func (vc *Context) createInstance(cfg Config, windowExtensions []string) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil: %w", driver.ErrMissingExtension)
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.ApplicationName),
		PEngineName:        VulkanSafeString("Okapi Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Generic surface extension first, then whatever the window needs.
	requiredExtensions := []string{vk.KhrSurfaceExtensionName}
	for _, ext := range windowExtensions {
		if ext != vk.KhrSurfaceExtensionName {
			requiredExtensions = append(requiredExtensions, ext)
		}
	}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions, portabilityEnumerationName, physicalDeviceProperties2Ext)
		createInfo.Flags |= portabilityEnumerationBit
	}
	if cfg.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}

	if err := checkInstanceExtensions(requiredExtensions); err != nil {
		return err
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers are only requested on non-release builds.
	var requiredLayers []string
	if cfg.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{validationLayerName}
		if err := checkInstanceLayers(requiredLayers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance); res != vk.Success {
		return resultError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		return err
	}

	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkInstanceExtensions(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceExtensionProperties("", &count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceExtensionProperties", res)
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateInstanceExtensionProperties("", &count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceExtensionProperties", res)
	}
	names := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		names[cString(available[i].ExtensionName[:])] = true
	}
	for _, name := range required {
		if !names[name] {
			return fmt.Errorf("required instance extension is missing: %s: %w", name, driver.ErrMissingExtension)
		}
	}
	return nil
}

func checkInstanceLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range available {
			available[j].Deref()
			if name == cString(available[j].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s: %w", name, driver.ErrMissingLayer)
		}
	}
	return nil
}

// The debug report callback cannot carry a Go pointer through its user
// data, so the handler lives at package level. Only one context is ever
// bootstrapped per process.
var (
	diagnosticsMu sync.RWMutex
	diagnostics   driver.DiagnosticHandler
)

func setDiagnosticHandler(h driver.DiagnosticHandler) {
	diagnosticsMu.Lock()
	defer diagnosticsMu.Unlock()
	diagnostics = h
}

func (vc *Context) createDebugCallback(handler driver.DiagnosticHandler) error {
	core.LogDebug("Creating Vulkan debugger...")
	setDiagnosticHandler(handler)

	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg)); err != nil {
		return fmt.Errorf("vk.CreateDebugReportCallback failed with %w", err)
	}
	vc.debugCallback = dbg

	core.LogDebug("Vulkan debugger created.")
	return nil
}

// severityFromFlags picks the most severe bit of a debug report.
func severityFromFlags(flags vk.DebugReportFlags) driver.Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return driver.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return driver.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return driver.SeverityInfo
	default:
		return driver.SeverityVerbose
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	diagnosticsMu.RLock()
	handler := diagnostics
	diagnosticsMu.RUnlock()

	if handler != nil {
		handler(driver.Diagnostic{
			Severity:  severityFromFlags(flags),
			MessageID: messageCode,
			Layer:     pLayerPrefix,
			Object:    object,
			Message:   pMessage,
		})
	}
	// Never abort the call that triggered the report.
	return vk.Bool32(vk.False)
}
