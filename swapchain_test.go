package vkcore

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestSwapchainManagerDelayQueueWaitsFullDepth(t *testing.T) {
	const depth = 3
	m := newSwapchainManager(depth)

	m.enqueueDestroy(vk.NullSwapchain, vk.NullSurface)

	targetBucket := (m.delayPos + len(m.delay) - 1) % len(m.delay)
	if len(m.delay[targetBucket]) != 1 {
		t.Fatalf("enqueueDestroy landed in bucket with %d entries, want 1", len(m.delay[targetBucket]))
	}

	for i := 0; i < depth-1; i++ {
		m.advanceDelayQueue(nil)
		if len(m.delay[targetBucket]) != 1 {
			t.Fatalf("after %d advance(s), target bucket lost its entry early", i+1)
		}
	}

	m.advanceDelayQueue(nil)
	if len(m.delay[targetBucket]) != 0 {
		t.Fatalf("target bucket still holds %d entries after %d advances", len(m.delay[targetBucket]), depth)
	}
	if m.delayPos != 0 {
		t.Fatalf("delayPos = %d after a full lap of %d advances, want 0", m.delayPos, depth)
	}
}

func TestSwapchainManagerDelayQueueRingWraps(t *testing.T) {
	const depth = 4
	m := newSwapchainManager(depth)

	for i := 0; i < depth*2; i++ {
		m.advanceDelayQueue(nil)
	}
	if m.delayPos != 0 {
		t.Fatalf("delayPos = %d after %d advances (two full laps of depth %d), want 0", m.delayPos, depth*2, depth)
	}
}

func TestSwapchainManagerSurfaceForCreatesAndReuses(t *testing.T) {
	m := newSwapchainManager(2)
	surface := vk.Surface(1)

	first := m.surfaceFor(surface)
	first.suboptimal = true

	second := m.surfaceFor(surface)
	if second != first {
		t.Fatal("surfaceFor returned a different record for the same surface")
	}
	if !second.Suboptimal() {
		t.Fatal("expected the mutation on first to be visible through second")
	}
}

func TestSurfaceRecordSuboptimalDefaultsFalse(t *testing.T) {
	var rec surfaceRecord
	if rec.Suboptimal() {
		t.Fatal("a fresh surfaceRecord should not report Suboptimal")
	}
}
