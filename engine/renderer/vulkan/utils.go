package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type resultInfo struct {
	name        string
	description string
}

// From: https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
var resultTable = map[vk.Result]resultInfo{
	// Success codes
	vk.Success:              {"VK_SUCCESS", "Command successfully completed"},
	vk.NotReady:             {"VK_NOT_READY", "A fence or query has not yet completed"},
	vk.Timeout:              {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	vk.EventSet:             {"VK_EVENT_SET", "An event is signaled"},
	vk.EventReset:           {"VK_EVENT_RESET", "An event is unsignaled"},
	vk.Incomplete:           {"VK_INCOMPLETE", "A return array was too small for the result"},
	vk.Suboptimal:           {"VK_SUBOPTIMAL_KHR", "The swapchain no longer matches the surface exactly but can still present"},
	vk.ThreadIdle:           {"VK_THREAD_IDLE_KHR", "A deferred operation has no work for this thread right now"},
	vk.ThreadDone:           {"VK_THREAD_DONE_KHR", "A deferred operation has no work left to assign"},
	vk.OperationDeferred:    {"VK_OPERATION_DEFERRED_KHR", "Some of the requested work was deferred"},
	vk.OperationNotDeferred: {"VK_OPERATION_NOT_DEFERRED_KHR", "None of the requested work was deferred"},

	// Error codes
	vk.ErrorOutOfHostMemory:             {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed"},
	vk.ErrorOutOfDeviceMemory:           {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed"},
	vk.ErrorInitializationFailed:        {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed"},
	vk.ErrorDeviceLost:                  {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost"},
	vk.ErrorMemoryMapFailed:             {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed"},
	vk.ErrorLayerNotPresent:             {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded"},
	vk.ErrorExtensionNotPresent:         {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported"},
	vk.ErrorFeatureNotPresent:           {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported"},
	vk.ErrorIncompatibleDriver:          {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver"},
	vk.ErrorTooManyObjects:              {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created"},
	vk.ErrorFormatNotSupported:          {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device"},
	vk.ErrorFragmentedPool:              {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation"},
	vk.ErrorSurfaceLost:                 {"VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available"},
	vk.ErrorNativeWindowInUse:           {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use"},
	vk.ErrorOutOfDate:                   {"VK_ERROR_OUT_OF_DATE_KHR", "The surface changed and the swapchain must be recreated"},
	vk.ErrorIncompatibleDisplay:         {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "The display is incompatible with the swapchain"},
	vk.ErrorInvalidShaderNv:             {"VK_ERROR_INVALID_SHADER_NV", "One or more shaders failed to compile or link"},
	vk.ErrorOutOfPoolMemory:             {"VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed"},
	vk.ErrorInvalidExternalHandle:       {"VK_ERROR_INVALID_EXTERNAL_HANDLE", "An external handle is not a valid handle of the specified type"},
	vk.ErrorFragmentation:               {"VK_ERROR_FRAGMENTATION", "A descriptor pool creation has failed due to fragmentation"},
	vk.ErrorInvalidDeviceAddress:        {"VK_ERROR_INVALID_DEVICE_ADDRESS_EXT", "The requested buffer address is not available"},
	vk.ErrorFullScreenExclusiveModeLost: {"VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT", "Exclusive full-screen access was lost"},
	vk.ErrorUnknown:                     {"VK_ERROR_UNKNOWN", "An unknown error has occurred"},
}

// VulkanResultString returns the name of result, followed by a short
// description when getExtended is set.
func VulkanResultString(result vk.Result, getExtended bool) string {
	info, ok := resultTable[result]
	if !ok {
		return fmt.Sprintf("VK_RESULT(%d)", int32(result))
	}
	return ConditionalOperator(!getExtended, info.name, info.name+" "+info.description)
}

// VulkanResultIsSuccess reports whether result is one of the non-error
// codes. Negative values are errors.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

func ConditionalOperator(condition bool, res1, res2 string) string {
	if condition {
		return res1
	}
	return res2
}

// resultError maps a failed call to the driver sentinel errors, keeping
// the Vulkan code in the message.
func resultError(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	var sentinel error
	switch result {
	case vk.Suboptimal:
		sentinel = driver.ErrSuboptimal
	case vk.ErrorOutOfDate:
		sentinel = driver.ErrOutOfDate
	case vk.Timeout, vk.NotReady:
		sentinel = driver.ErrTimeout
	case vk.ErrorDeviceLost, vk.ErrorSurfaceLost:
		sentinel = driver.ErrDeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory,
		vk.ErrorFragmentedPool, vk.ErrorFragmentation, vk.ErrorTooManyObjects:
		sentinel = driver.ErrOutOfMemory
	case vk.ErrorLayerNotPresent:
		sentinel = driver.ErrMissingLayer
	case vk.ErrorExtensionNotPresent:
		sentinel = driver.ErrMissingExtension
	case vk.ErrorInvalidShaderNv:
		sentinel = driver.ErrInvalidShader
	default:
		return fmt.Errorf("%s failed with %s", op, VulkanResultString(result, true))
	}
	return fmt.Errorf("%s: %w (%s)", op, sentinel, VulkanResultString(result, false))
}

var end = "\x00"
var endChar byte = '\x00'

// VulkanSafeString null-terminates s for the C side of the bindings.
func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// FindFirstZeroInByteArray returns the index of the first zero byte, or
// len(arr) when there is none.
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

// cString converts a fixed-size, null-padded name as returned by the
// enumerate calls.
func cString(arr []byte) string {
	return string(arr[:FindFirstZeroInByteArray(arr)])
}
