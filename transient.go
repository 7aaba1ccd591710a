package vkcore

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// transientBuffer is one host-visible buffer drawn from the global
// recycle freelist, backing a per-thread transient allocator's current
// cursor.
type transientBuffer struct {
	buffer vk.Buffer
	memory MemoryAllocation
}

// TransientRange is a short-lived, host-visible buffer range returned by
// transientAllocator.Allocate. Its lifetime is exactly the frame that produced it.
type TransientRange struct {
	Ptr    unsafe.Pointer
	Size   uint64
	Buffer vk.Buffer
	Offset uint64
}

// transientAllocator is the per-thread, per-frame-slot bump allocator
// described by §4.3: a current buffer and a downward-growing cursor.
// Grounded directly on mod.rs's request_transient_buffer /
// allocate_transient_buffer.
type transientAllocator struct {
	current     *transientBuffer
	offset      uint64
	usedBuffers []*transientBuffer
}

// transientPool owns the global recycle freelist and the device state
// needed to mint fresh transient buffers.
type transientPool struct {
	mu       sync.Mutex
	free     []*transientBuffer
	device   vk.Device
	mem      *MemoryAllocator
	queueFam uint32
	bufSize  uint64
	minUniformAlign uint64
	minStorageAlign uint64
	minCopyAlign    uint64
}

func newTransientPool(device vk.Device, mem *MemoryAllocator, queueFam uint32, bufSize uint64, limits vk.PhysicalDeviceLimits) *transientPool {
	limits.Deref()
	return &transientPool{
		device:          device,
		mem:             mem,
		queueFam:        queueFam,
		bufSize:         bufSize,
		minUniformAlign: uint64(limits.MinUniformBufferOffsetAlignment),
		minStorageAlign: uint64(limits.MinStorageBufferOffsetAlignment),
		minCopyAlign:    uint64(limits.OptimalBufferCopyOffsetAlignment),
	}
}

// acquire pops a recycled transient buffer or mints a fresh one, zeroing
// it first per mod.rs's allocate_transient_buffer (which fills the newly
// mapped memory with zeroes before first use).
func (p *transientPool) acquire() *transientBuffer {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		tb := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return tb
	}
	p.mu.Unlock()

	info := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(p.bufSize),
		Usage: vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) |
			vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) |
			vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) |
			vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		SharingMode:           vk.SharingModeExclusive,
		QueueFamilyIndexCount: 1,
		PQueueFamilyIndices:   []uint32{p.queueFam},
	}
	var buffer vk.Buffer
	orPanic(checkErr(vk.CreateBuffer(p.device, &info, nil, &buffer)))

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(p.device, buffer, &reqs)
	reqs.Deref()

	alloc := p.mem.Allocate(reqs.MemoryTypeBits, MemoryLocationHostMapped, reqs.Size, reqs.Alignment)
	if alloc.MappedPointer() == nil {
		orPanic(fmt.Errorf("vkcore: transient buffer memory is not host-visible"))
	}
	zero := make([]byte, p.bufSize)
	copy(unsafe.Slice((*byte)(alloc.MappedPointer()), p.bufSize), zero)

	orPanic(checkErr(vk.BindBufferMemory(p.device, buffer, alloc.Memory(), alloc.Offset())))

	return &transientBuffer{buffer: buffer, memory: alloc}
}

// release returns a transient buffer to the global freelist for reuse by
// any thread in a future frame. The freelist has no size or age bound;
// this is an explicit Open Question left to the implementer (see
// DESIGN.md).
//
// TODO: add an age- or count-based cap if the freelist is ever observed
// growing unbounded under sustained per-frame churn.
func (p *transientPool) release(tb *transientBuffer) {
	p.mu.Lock()
	p.free = append(p.free, tb)
	p.mu.Unlock()
}

func alignDown(v, align uint64) uint64 {
	return v &^ (align - 1)
}

// Allocate services a transient request per §4.3's exact algorithm: widen
// alignment for the usage bits present, push the exhausted current buffer
// and draw a fresh one if there's no room, then bump the cursor downward
// and mask it to the alignment.
func (a *transientAllocator) Allocate(pool *transientPool, usage vk.BufferUsageFlags, size, align uint64) TransientRange {
	if size > pool.bufSize {
		orPanic(fmt.Errorf("vkcore: transient allocation of %d exceeds buffer size %d", size, pool.bufSize))
	}
	if align == 0 || align&(align-1) != 0 {
		orPanic(fmt.Errorf("vkcore: transient alignment %d is not a power of two", align))
	}

	if usage&vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) != 0 && pool.minUniformAlign > align {
		align = pool.minUniformAlign
	}
	if usage&vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) != 0 && pool.minStorageAlign > align {
		align = pool.minStorageAlign
	}
	if usage&(vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)) != 0 && pool.minCopyAlign > align {
		align = pool.minCopyAlign
	}

	if a.current == nil || a.offset < size {
		tb := pool.acquire()
		a.usedBuffers = append(a.usedBuffers, tb)
		a.current = tb
		a.offset = pool.bufSize
	}

	a.offset -= size
	a.offset = alignDown(a.offset, align)

	base := a.current.memory.MappedPointer()
	ptr := unsafe.Pointer(uintptr(base) + uintptr(a.offset))

	return TransientRange{
		Ptr:    ptr,
		Size:   size,
		Buffer: a.current.buffer,
		Offset: a.offset,
	}
}

// reset returns every buffer used this frame to the global freelist and
// clears the cursor, run once per thread slot on frame retirement (§4.10
// step 3).
func (a *transientAllocator) reset(pool *transientPool) {
	for _, tb := range a.usedBuffers {
		pool.release(tb)
	}
	a.usedBuffers = a.usedBuffers[:0]
	a.current = nil
	a.offset = 0
}
