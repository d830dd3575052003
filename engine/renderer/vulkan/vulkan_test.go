package vulkan

import (
	"errors"
	"sync"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPoolQueueCallsDoNotDeadlock(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeQueueCall(0, func() error {
				counter++
				return nil
			})
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue calls did not complete")
	}
	assert.Equal(t, 32, counter)
}

func TestLockPoolNestedGroups(t *testing.T) {
	pool := NewVulkanLockPool()
	err := pool.SafeCall(BufferManagement, func() error {
		return pool.SafeCall(MemoryManagement, func() error {
			return errors.New("inner")
		})
	})
	assert.EqualError(t, err, "inner")
}

func TestResultError(t *testing.T) {
	cases := []struct {
		result   vk.Result
		sentinel error
	}{
		{vk.Suboptimal, driver.ErrSuboptimal},
		{vk.ErrorOutOfDate, driver.ErrOutOfDate},
		{vk.Timeout, driver.ErrTimeout},
		{vk.ErrorDeviceLost, driver.ErrDeviceLost},
		{vk.ErrorSurfaceLost, driver.ErrDeviceLost},
		{vk.ErrorOutOfDeviceMemory, driver.ErrOutOfMemory},
		{vk.ErrorFragmentedPool, driver.ErrOutOfMemory},
		{vk.ErrorLayerNotPresent, driver.ErrMissingLayer},
		{vk.ErrorExtensionNotPresent, driver.ErrMissingExtension},
	}
	for _, c := range cases {
		err := resultError("vkOp", c.result)
		require.Error(t, err)
		assert.ErrorIs(t, err, c.sentinel, VulkanResultString(c.result, false))
		assert.Contains(t, err.Error(), "vkOp")
	}

	assert.NoError(t, resultError("vkOp", vk.Success))

	err := resultError("vkOp", vk.ErrorFeatureNotPresent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VK_ERROR_FEATURE_NOT_PRESENT")
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success, false))
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR The surface changed and the swapchain must be recreated",
		VulkanResultString(vk.ErrorOutOfDate, true))
	assert.Equal(t, "VK_RESULT(-12345)", VulkanResultString(vk.Result(-12345), true))

	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "VK_KHR_surface")
	assert.Equal(t, "VK_KHR_surface", cString(name[:]))
	assert.Equal(t, "full", cString([]byte("full")))
	assert.Equal(t, 4, FindFirstZeroInByteArray([]byte("full")))
}

func TestFormatRoundTrip(t *testing.T) {
	for f := driver.FormatR8G8B8A8Unorm; f <= driver.FormatR32G32B32A32Sfloat; f++ {
		assert.Equal(t, f, fromVkFormat(toVkFormat(f)), f.String())
	}
	assert.Equal(t, driver.FormatUndefined, fromVkFormat(vk.Format(131)))
}

func TestPresentModeConversion(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, toVkPresentMode(driver.PresentModeMailbox))
	assert.Equal(t, vk.PresentModeFifo, toVkPresentMode(driver.PresentMode(42)))

	m, ok := fromVkPresentMode(vk.PresentModeImmediate)
	assert.True(t, ok)
	assert.Equal(t, driver.PresentModeImmediate, m)

	_, ok = fromVkPresentMode(vk.PresentMode(1000111000))
	assert.False(t, ok)
}

func TestBitConversion(t *testing.T) {
	usage := toVkBufferUsage(driver.BufferUsageVertex | driver.BufferUsageTransferDst)
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit), usage)

	stages := toVkShaderStage(driver.ShaderStageVertex | driver.ShaderStageFragment)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), stages)

	assert.Equal(t, vk.AccessFlags(0), toVkAccess(driver.AccessNone))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), toVkAspect(driver.AspectDepth))
}

func TestSpirvWords(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00}
	assert.Equal(t, []uint32{0x07230203, 1}, spirvWords(code))
}

func TestNewShaderModuleRejectsMisalignedCode(t *testing.T) {
	vc := &Context{locks: NewVulkanLockPool()}
	_, err := vc.NewShaderModule([]byte{1, 2, 3})
	assert.ErrorIs(t, err, driver.ErrInvalidShader)

	_, err = vc.NewShaderModule(nil)
	assert.ErrorIs(t, err, driver.ErrInvalidShader)
}

func TestSeverityFromFlags(t *testing.T) {
	assert.Equal(t, driver.SeverityError,
		severityFromFlags(vk.DebugReportFlags(vk.DebugReportErrorBit|vk.DebugReportWarningBit)))
	assert.Equal(t, driver.SeverityWarning, severityFromFlags(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)))
	assert.Equal(t, driver.SeverityInfo, severityFromFlags(vk.DebugReportFlags(vk.DebugReportInformationBit)))
	assert.Equal(t, driver.SeverityVerbose, severityFromFlags(vk.DebugReportFlags(vk.DebugReportDebugBit)))
}
