//go:build integration

package vkcore

import (
	"runtime"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// TestDeviceBringUpAndFrameLoop exercises NewDevice, BeginFrame,
// AcquireSwapchain, and EndFrame against a real driver and window, mirroring
// vulkan-go-asche/test's TestRender bring-up sequence against this package's
// API instead of dieselvk's. Excluded from the default test run since it
// needs a GPU and a display; run with -tags integration.
func TestDeviceBringUpAndFrameLoop(t *testing.T) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		t.Fatalf("glfw init: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(64, 64, "vkcore integration test", nil, nil)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		t.Fatalf("vulkan init: %v", err)
	}

	cfg := DefaultConfig("vkcore-integration-test")
	device, err := NewDevice(cfg, vk.NullSurface, window.GetRequiredInstanceExtensions())
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer device.Destroy()

	surfacePtr, err := window.CreateWindowSurface(device.Instance(), nil)
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	thread := device.AcquireThreadToken()

	for i := 0; i < 3; i++ {
		frame := device.BeginFrame()

		_, _, imageHandle, err := device.AcquireSwapchain(frame, surface, 64, 64, vk.FormatB8g8r8a8Unorm)
		if err != nil {
			device.EndFrame(frame)
			t.Fatalf("AcquireSwapchain on iteration %d: %v", i, err)
		}

		view, img := device.ImageViewAndHandle(imageHandle)
		if view == vk.NullImageView || img == vk.Image(vk.NullHandle) {
			t.Fatal("AcquireSwapchain returned a zero-valued image view or image")
		}

		cb := device.CreateCmdBuffer(frame, thread)
		cb.CmdBeginRendering(64, 64, []ColorAttachment{{
			View:       view,
			Swapchain:  surface,
			Image:      img,
			ClearColor: [4]float32{0, 0, 0, 1},
			Load:       vk.AttachmentLoadOpClear,
		}})
		cb.CmdEndRendering()
		device.Submit(frame, cb)

		device.EndFrame(frame)
	}

	device.DestroySwapchain(surface)
}
