// Package drivertest provides an in-memory driver.Device that records
// every command and checks the synchronization rules a real driver would
// enforce through its validation layers.
package drivertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// Device is a fake driver.Device. The zero value is not usable; call
// NewDevice.
type Device struct {
	mu sync.Mutex

	Caps         driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	Modes        []driver.PresentMode
	DeviceLimits driver.Limits
	Depth        driver.Format

	// UnmappedHostBuffers disables the persistent mapping of host visible
	// buffers, forcing writers through Map/Flush/Unmap.
	UnmappedHostBuffers bool

	acquireResults []error
	presentResults []error
	failures       map[string]error

	nextImage  uint32
	semaphores uint64
	idleEpoch  uint64
	live       map[driver.Destroyer]string

	Submits          []driver.SubmitInfo
	PresentCalls     int
	Presents         int
	PresentedImages  []uint32
	WaitIdles        int
	QueueWaitIdles   int
	SwapchainsBuilt  int
	StagingCreated   int
	StagingDestroyed int

	// Destroyed lists the kinds of destroyed objects in order.
	Destroyed  []string
	Violations []string
}

func NewDevice() *Device {
	return &Device{
		Caps: driver.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  driver.Extent2D{Width: 800, Height: 600},
			MinImageExtent: driver.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: driver.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear},
		},
		Modes: []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox},
		DeviceLimits: driver.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MaxPushConstantsSize:            128,
			MaxSamplerAnisotropy:            16,
		},
		Depth:    driver.FormatD32Sfloat,
		failures: map[string]error{},
		live:     map[driver.Destroyer]string{},
	}
}

// QueueAcquire queues the results of the next AcquireNextImage calls. A
// nil entry is a successful acquire.
func (d *Device) QueueAcquire(results ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireResults = append(d.acquireResults, results...)
}

// QueuePresent queues the results of the next Present calls.
func (d *Device) QueuePresent(results ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentResults = append(d.presentResults, results...)
}

// Fail makes the next call of the named method return err. Method names
// match the driver.Device methods, e.g. "NewBuffer" or "Submit". Object
// methods are qualified with their type: "Fence.Wait",
// "CommandPool.Reset" and "CommandBuffer.Begin".
func (d *Device) Fail(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[method] = err
}

// SetExtent changes the current extent reported by the surface.
func (d *Device) SetExtent(width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Caps.CurrentExtent = driver.Extent2D{Width: width, Height: height}
}

// Live returns the number of objects created and not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// LiveOf returns the number of live objects of the given kind, e.g.
// "buffer", "semaphore" or "fence".
func (d *Device) LiveOf(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) takeFailure(method string) error {
	if err, ok := d.failures[method]; ok {
		delete(d.failures, method)
		return err
	}
	return nil
}

func (d *Device) track(obj driver.Destroyer, kind string) {
	d.live[obj] = kind
}

func (d *Device) release(obj driver.Destroyer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, ok := d.live[obj]
	if !ok {
		d.violate("destroy of unknown or already destroyed object %T", obj)
		return
	}
	if sem, ok := obj.(*Semaphore); ok && sem.signaled && sem.epoch == d.idleEpoch {
		d.violate("semaphore %d destroyed with a pending signal", sem.id)
	}
	if kind == "buffer" {
		if b, ok := obj.(*Buffer); ok && b.staging() {
			d.StagingDestroyed++
		}
	}
	delete(d.live, obj)
	d.Destroyed = append(d.Destroyed, kind)
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for obj, kind := range d.live {
		d.violate("device destroyed with live %s %T", kind, obj)
	}
}

func (d *Device) Name() string { return "drivertest" }

func (d *Device) Limits() driver.Limits { return d.DeviceLimits }

func (d *Device) DepthFormat() driver.Format { return d.Depth }

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WaitIdles++
	if err := d.takeFailure("WaitIdle"); err != nil {
		return err
	}
	d.idleEpoch++
	return nil
}

func (d *Device) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.QueueWaitIdles++
	return d.takeFailure("QueueWaitIdle")
}

func (d *Device) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Caps, d.takeFailure("SurfaceCapabilities")
}

func (d *Device) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.SurfaceFormat(nil), d.Formats...), d.takeFailure("SurfaceFormats")
}

func (d *Device) PresentModes() ([]driver.PresentMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.PresentMode(nil), d.Modes...), d.takeFailure("PresentModes")
}

func (d *Device) NewSwapchain(cfg driver.SwapchainConfig, old driver.Swapchain) (driver.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewSwapchain"); err != nil {
		return nil, err
	}
	if cfg.ImageCount == 0 {
		return nil, errors.New("swapchain with zero images")
	}
	if cfg.Extent.Width == 0 || cfg.Extent.Height == 0 {
		d.violate("swapchain created with zero extent %dx%d", cfg.Extent.Width, cfg.Extent.Height)
	}
	sc := &Swapchain{dev: d, cfg: cfg}
	if o, ok := old.(*Swapchain); ok && o != nil {
		o.retired = true
		sc.Previous = o
	}
	for i := uint32(0); i < cfg.ImageCount; i++ {
		v := &ImageView{dev: d}
		d.track(v, "image-view")
		sc.views = append(sc.views, v)
	}
	d.track(sc, "swapchain")
	d.SwapchainsBuilt++
	d.nextImage = 0
	return sc, nil
}

func (d *Device) AcquireNextImage(sc driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain := sc.(*Swapchain)
	if chain.retired {
		d.violate("acquire from a retired swapchain")
	}
	var result error
	if len(d.acquireResults) > 0 {
		result = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if result != nil && !errors.Is(result, driver.ErrSuboptimal) {
		return 0, result
	}
	sem := signal.(*Semaphore)
	if sem.signaled {
		d.violate("acquire signals semaphore %d which is still pending", sem.id)
	}
	sem.signaled = true
	sem.epoch = d.idleEpoch
	idx := d.nextImage % chain.cfg.ImageCount
	d.nextImage++
	return idx, result
}

func (d *Device) Present(sc driver.Swapchain, imageIndex uint32, wait driver.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PresentCalls++
	sem := wait.(*Semaphore)
	if !sem.signaled {
		d.violate("present waits on semaphore %d which is never signaled", sem.id)
	}
	sem.signaled = false
	var result error
	if len(d.presentResults) > 0 {
		result = d.presentResults[0]
		d.presentResults = d.presentResults[1:]
	}
	if result != nil {
		return result
	}
	d.Presents++
	d.PresentedImages = append(d.PresentedImages, imageIndex)
	return nil
}

func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewSemaphore"); err != nil {
		return nil, err
	}
	d.semaphores++
	s := &Semaphore{dev: d, id: d.semaphores}
	d.track(s, "semaphore")
	return s, nil
}

func (d *Device) NewFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewFence"); err != nil {
		return nil, err
	}
	f := &Fence{dev: d, signaled: signaled}
	d.track(f, "fence")
	return f, nil
}

func (d *Device) NewCommandPool(flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewCommandPool"); err != nil {
		return nil, err
	}
	p := &CommandPool{dev: d, Flags: flags}
	d.track(p, "command-pool")
	return p, nil
}

// Submit executes the recorded transfer commands of every command buffer
// and signals the fence.
func (d *Device) Submit(info driver.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("Submit"); err != nil {
		return err
	}
	if len(info.Wait) != len(info.WaitStages) {
		d.violate("submit with %d wait semaphores and %d wait stages", len(info.Wait), len(info.WaitStages))
	}
	for _, s := range info.Wait {
		sem := s.(*Semaphore)
		if !sem.signaled {
			d.violate("submit waits on semaphore %d which is never signaled", sem.id)
		}
		sem.signaled = false
	}
	for _, c := range info.CommandBuffers {
		cb := c.(*CommandBuffer)
		if cb.state != stateEnded {
			d.violate("submit of command buffer in state %s", cb.state)
		}
		cb.execute()
		cb.state = stateSubmitted
	}
	for _, s := range info.Signal {
		sem := s.(*Semaphore)
		if sem.signaled {
			d.violate("submit signals semaphore %d which is still pending", sem.id)
		}
		sem.signaled = true
		sem.epoch = d.idleEpoch
	}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.signaled {
			d.violate("submit with a fence that is already signaled")
		}
		f.signaled = true
		f.waitsSinceSignal = 0
	}
	d.Submits = append(d.Submits, info)
	return nil
}

func (d *Device) NewBuffer(spec driver.BufferSpec) (driver.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewBuffer"); err != nil {
		return nil, err
	}
	if spec.Size == 0 {
		return nil, errors.New("buffer of size zero")
	}
	b := &Buffer{dev: d, spec: spec, data: make([]byte, spec.Size)}
	if spec.Residency.HostVisible() && !d.UnmappedHostBuffers {
		b.persistent = true
	}
	if b.staging() {
		d.StagingCreated++
	}
	d.track(b, "buffer")
	return b, nil
}

func (d *Device) NewImage(spec driver.ImageSpec) (driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewImage"); err != nil {
		return nil, err
	}
	img := &Image{dev: d, spec: spec, view: &ImageView{dev: d}, Layout: driver.ImageLayoutUndefined}
	img.data = make([]byte, int(spec.Extent.Width)*int(spec.Extent.Height)*int(max(spec.Extent.Depth, 1))*4)
	d.track(img, "image")
	d.track(img.view, "image-view")
	return img, nil
}

func (d *Device) NewSampler(cfg driver.SamplerConfig) (driver.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewSampler"); err != nil {
		return nil, err
	}
	s := &handle{dev: d, kind: "sampler"}
	d.track(s, s.kind)
	return s, nil
}

func (d *Device) NewRenderPass(color, depth driver.Format) (driver.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewRenderPass"); err != nil {
		return nil, err
	}
	rp := &handle{dev: d, kind: "render-pass"}
	d.track(rp, rp.kind)
	return rp, nil
}

func (d *Device) NewFramebuffer(rp driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewFramebuffer"); err != nil {
		return nil, err
	}
	for _, a := range attachments {
		if _, ok := d.live[a]; !ok {
			d.violate("framebuffer attachment %T is not alive", a)
		}
	}
	fb := &Framebuffer{handle: handle{dev: d, kind: "framebuffer"}, Extent: extent, Attachments: attachments}
	d.track(fb, fb.kind)
	return fb, nil
}

func (d *Device) NewDescriptorSetLayout(bindings ...driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewDescriptorSetLayout"); err != nil {
		return nil, err
	}
	l := &DescriptorSetLayout{handle: handle{dev: d, kind: "descriptor-set-layout"}, Bindings: bindings}
	d.track(l, l.kind)
	return l, nil
}

func (d *Device) NewDescriptorPool(maxSets uint32, sizes ...driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewDescriptorPool"); err != nil {
		return nil, err
	}
	p := &DescriptorPool{handle: handle{dev: d, kind: "descriptor-pool"}, maxSets: maxSets}
	d.track(p, p.kind)
	return p, nil
}

func (d *Device) NewShaderModule(code []byte) (driver.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewShaderModule"); err != nil {
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, driver.ErrInvalidShader
	}
	m := &handle{dev: d, kind: "shader-module"}
	d.track(m, m.kind)
	return m, nil
}

func (d *Device) NewPipelineLayout(sets []driver.DescriptorSetLayout, push []driver.PushConstantRange) (driver.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewPipelineLayout"); err != nil {
		return nil, err
	}
	l := &PipelineLayout{handle: handle{dev: d, kind: "pipeline-layout"}, Sets: sets, Push: push}
	d.track(l, l.kind)
	return l, nil
}

func (d *Device) NewGraphicsPipeline(cfg driver.PipelineConfig) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure("NewGraphicsPipeline"); err != nil {
		return nil, err
	}
	p := &Pipeline{handle: handle{dev: d, kind: "pipeline"}, Config: cfg}
	d.track(p, p.kind)
	return p, nil
}
