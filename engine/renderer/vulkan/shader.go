package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

type ShaderModule struct {
	ctx    *Context
	Handle vk.ShaderModule
}

func (vc *Context) NewShaderModule(code []byte) (driver.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V code of %d bytes is not a whole number of words: %w", len(code), driver.ErrInvalidShader)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    spirvWords(code),
	}

	m := &ShaderModule{ctx: vc}
	if err := vc.locks.SafeCall(ShaderManagement, func() error {
		return resultError("vkCreateShaderModule", vk.CreateShaderModule(vc.LogicalDevice, &createInfo, vc.Allocator, &m.Handle))
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ShaderModule) Destroy() {
	if m.Handle == nil {
		return
	}
	m.ctx.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(m.ctx.LogicalDevice, m.Handle, m.ctx.Allocator)
		return nil
	})
	m.Handle = nil
}

// spirvWords repacks little-endian SPIR-V bytes. The copy keeps the words
// aligned no matter where the byte slice came from.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
