package renderer

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// AllocatedBuffer is a buffer created by an Allocator. Only that allocator
// may destroy it.
type AllocatedBuffer struct {
	Buffer driver.Buffer
	owner  *Allocator
	name   string
}

func (b *AllocatedBuffer) Size() uint64                { return b.Buffer.Size() }
func (b *AllocatedBuffer) Residency() driver.Residency { return b.Buffer.Residency() }

// Mapped returns the persistent mapping, or nil.
func (b *AllocatedBuffer) Mapped() []byte { return b.Buffer.Mapped() }

func (b *AllocatedBuffer) HostVisible() bool { return b.Buffer.Residency().HostVisible() }

// AllocatedImage is a device-local image created by an Allocator,
// together with its default view.
type AllocatedImage struct {
	Image driver.Image
	owner *Allocator
	name  string
}

func (i *AllocatedImage) View() driver.ImageView  { return i.Image.View() }
func (i *AllocatedImage) Extent() driver.Extent3D { return i.Image.Extent() }
func (i *AllocatedImage) Format() driver.Format   { return i.Image.Format() }

// Allocator is the single owner of buffer and image memory. It keeps a
// record of every live resource so teardown can report leaks.
type Allocator struct {
	dc *DeviceContext

	mu      sync.Mutex
	buffers map[*AllocatedBuffer]struct{}
	images  map[*AllocatedImage]struct{}
}

func NewAllocator(dc *DeviceContext) *Allocator {
	return &Allocator{
		dc:      dc,
		buffers: make(map[*AllocatedBuffer]struct{}),
		images:  make(map[*AllocatedImage]struct{}),
	}
}

// CreateBuffer allocates a buffer. Host residencies come back persistently
// mapped.
func (a *Allocator) CreateBuffer(name string, size uint64, usage driver.BufferUsage, residency driver.Residency) (*AllocatedBuffer, error) {
	buf, err := a.dc.Device().NewBuffer(driver.BufferSpec{Size: size, Usage: usage, Residency: residency})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q of %d bytes: %w", name, size, err)
	}
	b := &AllocatedBuffer{Buffer: buf, owner: a, name: name}

	a.mu.Lock()
	a.buffers[b] = struct{}{}
	a.mu.Unlock()
	return b, nil
}

// CreateImage allocates a device-local, optimally tiled 2D image with a
// view over its whole extent.
func (a *Allocator) CreateImage(name string, format driver.Format, extent driver.Extent3D, usage driver.ImageUsage, aspect driver.Aspect) (*AllocatedImage, error) {
	img, err := a.dc.Device().NewImage(driver.ImageSpec{Format: format, Extent: extent, Usage: usage, Aspect: aspect})
	if err != nil {
		return nil, fmt.Errorf("failed to create image %q (%dx%d %s): %w", name, extent.Width, extent.Height, format, err)
	}
	i := &AllocatedImage{Image: img, owner: a, name: name}

	a.mu.Lock()
	a.images[i] = struct{}{}
	a.mu.Unlock()
	return i, nil
}

func (a *Allocator) DestroyBuffer(b *AllocatedBuffer) error {
	if b == nil {
		return nil
	}
	a.mu.Lock()
	_, ok := a.buffers[b]
	if ok && b.owner == a {
		delete(a.buffers, b)
	}
	a.mu.Unlock()
	if !ok || b.owner != a {
		return fmt.Errorf("buffer %q: %w", b.name, ErrNotOwned)
	}
	b.Buffer.Destroy()
	return nil
}

func (a *Allocator) DestroyImage(i *AllocatedImage) error {
	if i == nil {
		return nil
	}
	a.mu.Lock()
	_, ok := a.images[i]
	if ok && i.owner == a {
		delete(a.images, i)
	}
	a.mu.Unlock()
	if !ok || i.owner != a {
		return fmt.Errorf("image %q: %w", i.name, ErrNotOwned)
	}
	i.Image.Destroy()
	return nil
}

// Live returns the number of buffers and images not yet destroyed.
func (a *Allocator) Live() (buffers, images int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers), len(a.images)
}

// Shutdown destroys whatever is still alive, logging each one as a leak,
// and returns how many there were.
func (a *Allocator) Shutdown() int {
	a.mu.Lock()
	buffers := a.buffers
	images := a.images
	a.buffers = make(map[*AllocatedBuffer]struct{})
	a.images = make(map[*AllocatedImage]struct{})
	a.mu.Unlock()

	for b := range buffers {
		core.LogWarn("Leaked buffer %q (%d bytes, %s)", b.name, b.Size(), b.Residency())
		b.Buffer.Destroy()
	}
	for i := range images {
		ext := i.Extent()
		core.LogWarn("Leaked image %q (%dx%d)", i.name, ext.Width, ext.Height)
		i.Image.Destroy()
	}
	return len(buffers) + len(images)
}
