package renderer

import (
	"fmt"

	"github.com/spaghettifunk/okapi/engine/renderer/driver"
)

// SemaphorePool recycles acquire semaphores. The free list is LIFO so the
// most recently waited semaphore is reused first.
type SemaphorePool struct {
	dev  driver.Device
	free []driver.Semaphore
	in   map[driver.Semaphore]struct{}
}

func NewSemaphorePool(dev driver.Device) *SemaphorePool {
	return &SemaphorePool{
		dev: dev,
		in:  make(map[driver.Semaphore]struct{}),
	}
}

// Acquire pops a free semaphore, creating one when the pool is empty.
func (p *SemaphorePool) Acquire() (driver.Semaphore, error) {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		delete(p.in, s)
		return s, nil
	}
	s, err := p.dev.NewSemaphore()
	if err != nil {
		return nil, fmt.Errorf("failed to create acquire semaphore: %w", err)
	}
	return s, nil
}

// Release returns s to the pool. s must not be signaled and must not be
// referenced by any frame slot.
func (p *SemaphorePool) Release(s driver.Semaphore) error {
	if s == nil {
		return nil
	}
	if _, ok := p.in[s]; ok {
		return ErrDoubleRelease
	}
	p.in[s] = struct{}{}
	p.free = append(p.free, s)
	return nil
}

func (p *SemaphorePool) Contains(s driver.Semaphore) bool {
	_, ok := p.in[s]
	return ok
}

func (p *SemaphorePool) Len() int {
	return len(p.free)
}

// Drain destroys every pooled semaphore.
func (p *SemaphorePool) Drain() {
	for i, s := range p.free {
		s.Destroy()
		p.free[i] = nil
	}
	p.free = p.free[:0]
	clear(p.in)
}
