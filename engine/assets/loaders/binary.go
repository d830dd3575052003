package loaders

import (
	"os"
	"path/filepath"
	"strings"
)

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Name:     resourceName(path, params),
		FullPath: path,
		Type:     ResourceTypeBinary,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(r *Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

// resourceName prefers a "name" entry in params and falls back to the file
// name without its extensions.
func resourceName(path string, params interface{}) string {
	if p, ok := params.(map[string]string); ok && p["name"] != "" {
		return p["name"]
	}
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
