package vkcore

import (
	"testing"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

func fakePool(bufSize uint64) *transientPool {
	return &transientPool{
		bufSize:         bufSize,
		minUniformAlign: 256,
		minStorageAlign: 64,
		minCopyAlign:    16,
	}
}

func fakeAllocator(bufSize uint64) *transientAllocator {
	buf := make([]byte, bufSize)
	tb := &transientBuffer{memory: MemoryAllocation{mapped: unsafe.Pointer(&buf[0])}}
	return &transientAllocator{current: tb, offset: bufSize}
}

func TestTransientExactSizeSucceeds(t *testing.T) {
	const size = uint64(2 * 1024 * 1024)
	a := fakeAllocator(size)
	r := a.Allocate(fakePool(size), 0, size, 1)
	if r.Offset != 0 {
		t.Fatalf("offset = %d, want 0 for an exact-size request", r.Offset)
	}
}

func TestTransientOverSizePanics(t *testing.T) {
	const size = uint64(2 * 1024 * 1024)
	a := fakeAllocator(size)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic requesting more than TransientBufferSize")
		}
	}()
	a.Allocate(fakePool(size), 0, size+1, 1)
}

func TestTransientOffsetAlignedDown(t *testing.T) {
	const size = uint64(4096)
	a := fakeAllocator(size)
	r := a.Allocate(fakePool(size), 0, 100, 16)
	if r.Offset%16 != 0 {
		t.Fatalf("offset %d not aligned to 16", r.Offset)
	}
	if r.Offset+r.Size > size {
		t.Fatalf("offset+size %d exceeds buffer size %d", r.Offset+r.Size, size)
	}
}

func TestTransientUniformUsageWidensAlignment(t *testing.T) {
	const size = uint64(4096)
	a := fakeAllocator(size)
	r := a.Allocate(fakePool(size), vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), 10, 1)
	if r.Offset%256 != 0 {
		t.Fatalf("uniform-usage offset %d not widened to the 256-byte minimum alignment", r.Offset)
	}
}

func TestTransientAllocNeverExceedsBufferSize(t *testing.T) {
	const size = uint64(1024)
	a := fakeAllocator(size)
	pool := fakePool(size)
	for i := 0; i < 4; i++ {
		r := a.Allocate(pool, 0, 64, 1)
		if r.Offset+r.Size > size {
			t.Fatalf("allocation %d exceeds buffer size", i)
		}
	}
}
