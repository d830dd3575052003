package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
)

const spirvMagic = 0x07230203

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*Resource, error) {
	code, err := LoadShader(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     resourceName(path, params),
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(code)),
		Data:     code,
	}, nil
}

func (sl *ShaderLoader) Unload(r *Resource) error {
	r.Data = nil
	return nil
}

// LoadShader reads a whole SPIR-V module from disk.
func LoadShader(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %s: %w", path, err)
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, fmt.Errorf("shader %s: %w", path, err)
	}
	return code, nil
}

// ValidateSPIRV checks the word alignment and the magic number of a module.
func ValidateSPIRV(code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return fmt.Errorf("%w: SPIR-V length %d is not a multiple of 4", ErrMalformed, len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("%w: bad SPIR-V magic 0x%08x", ErrMalformed, magic)
	}
	return nil
}
