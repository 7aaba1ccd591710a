package vkcore

import (
	"fmt"
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"
)

// ThreadToken is a non-transferable, process-lifetime capability: one per
// thread, pinned for as long as the process runs (§5). Per-thread slots
// are indexed by it; it is not thread-local storage (§9 "no TLS, no
// per-thread singletons").
type ThreadToken struct {
	index uint32
}

// threadTokens hands out the next unused index on every acquire call; it
// does not track which goroutine asked. The caller is responsible for keeping the token it is handed
// for the life of that worker, matching the "pinned for process lifetime"
// discipline — this core does not try to reclaim indices.
type threadTokens struct {
	next uint32
}

func (t *threadTokens) acquire() ThreadToken {
	idx := atomic.AddUint32(&t.next, 1) - 1
	return ThreadToken{index: idx}
}

// threadSlot is one per-thread, per-frame-slot cache: a command-buffer
// pool, a transient buffer allocator, and the descriptor pool currently in
// use by that thread this frame. Grounded on dieselvk/instance.go's
// PerFrame and mod.rs's VulkanPerThread.
type threadSlot struct {
	cmdPool   *cmdBufferPool
	transient transientAllocator
	descPool  vk.DescriptorPool
}

// presentEntry records, per surface touched this frame, the acquire
// semaphore and image index obtained from AcquireSwapchain and the
// release semaphore attached by Submit.
type presentEntry struct {
	underlying vk.Swapchain
	imageIndex uint32
	acquire    vk.Semaphore
	release    vk.Semaphore
}

// Frame is the token acquired by BeginFrame and consumed by EndFrame. It
// records the device that issued it and the counter value at acquisition;
// the methods that take a Frame do not compare either against the
// device's current state.
type Frame struct {
	device  *Device
	counter uint64
	slots   []*threadSlot

	destroyQueue     destroyQueue
	recycleSemaphores []vk.Semaphore
	recycleDescPools  []vk.DescriptorPool
	presentSwapchains map[vk.Surface]*presentEntry

	// signaledValue is the universal timeline value this frame's last
	// Submit call signaled (§4.7 step 1's "in-flight marker"). Zero if the
	// frame never submitted anything. BeginFrame waits on this recorded
	// value, not on the frame's ordinal counter, before reusing the ring
	// slot — the timeline advances once per Submit, not once per frame.
	signaledValue uint64

	released bool
}

func newFrame(d *Device, counter uint64, numThreads int) *Frame {
	f := &Frame{
		device:            d,
		counter:           counter,
		presentSwapchains: make(map[vk.Surface]*presentEntry),
	}
	f.slots = make([]*threadSlot, numThreads)
	return f
}

// growSlots extends f.slots to cover numThreads, preserving existing
// per-thread state. A Frame's slots slice is sized once at its first
// creation and is otherwise never grown on its own — called every
// BeginFrame so a thread token acquired after a ring slot was first
// populated still gets a slot on that ring position.
func (f *Frame) growSlots(numThreads int) {
	if len(f.slots) >= numThreads {
		return
	}
	grown := make([]*threadSlot, numThreads)
	copy(grown, f.slots)
	f.slots = grown
}

func (f *Frame) threadSlot(t ThreadToken) *threadSlot {
	if int(t.index) >= len(f.slots) {
		orPanic(fmt.Errorf("vkcore: thread token %d has no frame slot", t.index))
	}
	s := f.slots[t.index]
	if s == nil {
		s = &threadSlot{cmdPool: newCmdBufferPool(f.device.vkDevice(), f.device.universalQueueFamily)}
		f.slots[t.index] = s
	}
	return s
}

// frameCounter pairs a monotonic counter with an in-flight flag (§3.2/
// §4.10). BeginFrame and EndFrame do not use this type: they keep the same
// state in Device's frameCounterNext and frameInFlight fields, guarded by
// frameMu.
type frameCounter struct {
	next    uint64
	inFlight bool
}

// BeginFrame implements §4.10's begin_frame: acquire the next frame token,
// wait for frame N-K's GPU work to retire, reset every per-thread slot,
// return recycled semaphores/descriptor-pools to their global freelists,
// drain this slot's deferred destructions, and advance the swapchain
// delay queue by one bucket.
func (d *Device) BeginFrame() *Frame {
	d.frameMu.Lock()
	if d.frameInFlight {
		d.frameMu.Unlock()
		orPanic(fmt.Errorf("vkcore: begin_frame called while a frame token is already outstanding"))
	}
	counter := d.frameCounterNext
	d.frameCounterNext++
	d.frameInFlight = true
	d.frameMu.Unlock()

	slotIndex := counter % uint64(d.cfg.NumFrames)

	frame := d.frameSlots[slotIndex]
	if frame != nil {
		// frame is this ring slot's previous occupant: wait for the actual
		// timeline value its last Submit signaled, not an assumed ordinal.
		// A slot that never submitted anything leaves signaledValue at 0,
		// which is always already satisfied.
		waitInfo := vk.SemaphoreWaitInfo{
			SType:          vk.StructureTypeSemaphoreWaitInfo,
			SemaphoreCount: 1,
			PSemaphores:    []vk.Semaphore{d.universalTimeline},
			PValues:        []uint64{frame.signaledValue},
		}
		orPanic(checkErr(vk.WaitSemaphores(d.device, &waitInfo, vk.MaxUint64)))

		frame.counter = counter
		for _, s := range frame.slots {
			if s == nil {
				continue
			}
			s.descPool = vk.NullDescriptorPool
			if s.cmdPool.next != 0 {
				s.cmdPool.reset()
			}
			s.transient.reset(d.transients)
		}
	} else {
		frame = newFrame(d, counter, int(atomic.LoadUint32(&d.threadTokens.next)))
		d.frameSlots[slotIndex] = frame
	}

	frame.growSlots(int(atomic.LoadUint32(&d.threadTokens.next)))

	frame.signaledValue = 0
	frame.released = false

	d.semaphores.recycle(frame.recycleSemaphores)
	frame.recycleSemaphores = frame.recycleSemaphores[:0]

	d.descriptors.reset(frame.recycleDescPools)
	frame.recycleDescPools = frame.recycleDescPools[:0]

	frame.destroyQueue.drain(d.device, d.memory)

	d.swapchains.advanceDelayQueue(d)

	return frame
}

// EndFrame implements §4.10's end_frame: assert every touched swapchain
// got a release semaphore from Submit, issue the batched present, clear
// present_swapchains, and release the frame token.
func (d *Device) EndFrame(frame *Frame) {
	d.swapchains.present(d, frame)

	for k := range frame.presentSwapchains {
		delete(frame.presentSwapchains, k)
	}

	d.frameMu.Lock()
	d.frameInFlight = false
	d.frameMu.Unlock()
	frame.released = true
}
