package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/okapi/engine/assets/loaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, 0x07230203)
	return b
}

func newAssetTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "shader.vert.spv"), spirv(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "shader.vert"), []byte("#version 450"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "tri.obj"), []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644))
	return root
}

func TestAssetManagerIndex(t *testing.T) {
	root := newAssetTree(t)
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root, false))
	t.Cleanup(func() { assert.NoError(t, am.Shutdown()) })

	assert.Equal(t, 2, am.Count(), "GLSL sources are not indexed")

	info, ok := am.Lookup("shaders/shader.vert.spv")
	require.True(t, ok)
	assert.Equal(t, loaders.ResourceTypeShader, info.Type)
	assert.Equal(t, am.Path("shaders/shader.vert.spv"), info.Path)
	assert.Equal(t, "shaders/shader.vert.spv", am.Name(info.Path))

	res, err := am.LoadAsset("models/tri.obj", nil)
	require.NoError(t, err)
	assert.Equal(t, loaders.ResourceTypeModel, res.Type)
	assert.Equal(t, uint64(3), res.DataSize)
	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)

	_, err = am.LoadAsset("textures/missing.png", nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.Empty(t, am.PollChanges())
}

func TestAssetManagerWatch(t *testing.T) {
	root := newAssetTree(t)
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root, true))
	t.Cleanup(func() { assert.NoError(t, am.Shutdown()) })

	path := filepath.Join(root, "shaders", "shader.frag.spv")
	require.NoError(t, os.WriteFile(path, spirv(), 0o644))

	var changed []string
	require.Eventually(t, func() bool {
		changed = append(changed, am.PollChanges()...)
		return len(changed) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "shaders/shader.frag.spv", changed[0])

	_, ok := am.Lookup("shaders/shader.frag.spv")
	assert.True(t, ok)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := am.Lookup("shaders/shader.frag.spv")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAssetManagerShutdownTwice(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir(), true))
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
}

func TestNotifyNeverBlocks(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	for i := 0; i < changeBufferSize+10; i++ {
		am.notify("shaders/shader.vert.spv")
	}
	assert.Equal(t, []string{"shaders/shader.vert.spv"}, am.PollChanges())
}
