package vkcore

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// semaphorePool is the global freelist of recycled binary semaphores used
// by swapchain acquire/present chaining, grounded on mod.rs's
// request_semaphore / request_transient_semaphore.
type semaphorePool struct {
	mu     sync.Mutex
	free   []vk.Semaphore
	device vk.Device
}

func newSemaphorePool(device vk.Device) *semaphorePool {
	return &semaphorePool{device: device}
}

// request draws a recycled semaphore or creates a fresh one.
func (p *semaphorePool) request() vk.Semaphore {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return s
	}
	p.mu.Unlock()

	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var s vk.Semaphore
	orPanic(checkErr(vk.CreateSemaphore(p.device, &info, nil, &s)))
	return s
}

// requestTransient draws a semaphore and records it on frame for return to
// the freelist on that frame's next retirement.
func (p *semaphorePool) requestTransient(frame *Frame) vk.Semaphore {
	s := p.request()
	frame.recycleSemaphores = append(frame.recycleSemaphores, s)
	return s
}

// recycle returns a batch of semaphores to the freelist, called from
// BeginFrame once the owning frame's GPU work has retired.
func (p *semaphorePool) recycle(semaphores []vk.Semaphore) {
	if len(semaphores) == 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, semaphores...)
	p.mu.Unlock()
}
