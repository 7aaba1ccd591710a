// Command vkcoredemo stands up a window, a Device, and a swapchain, then
// clears the screen every frame. It exists to exercise the frame-ring and
// swapchain-manager wiring end to end against a real driver, grounded on
// vulkan-go-asche/test's TestRender bring-up sequence.
package main

import (
	"log"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkcore"
)

const (
	width  = 1280
	height = 720
)

func main() {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		log.Fatalf("vkcoredemo: glfw init: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(width, height, "vkcoredemo", nil, nil)
	if err != nil {
		log.Fatalf("vkcoredemo: create window: %v", err)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		log.Fatalf("vkcoredemo: vulkan init: %v", err)
	}

	cfg := vkcore.DefaultConfig("vkcoredemo")
	cfg.Validation = true

	device, err := vkcore.NewDevice(cfg, vk.NullSurface, window.GetRequiredInstanceExtensions())
	if err != nil {
		log.Fatalf("vkcoredemo: device bring-up: %v", err)
	}
	defer device.Destroy()

	surfacePtr, err := window.CreateWindowSurface(device.Instance(), nil)
	if err != nil {
		log.Fatalf("vkcoredemo: create surface: %v", err)
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	thread := device.AcquireThreadToken()

	for !window.ShouldClose() {
		glfw.PollEvents()

		frame := device.BeginFrame()

		w, h := window.GetFramebufferSize()
		_, _, imageHandle, err := device.AcquireSwapchain(frame, surface, uint32(w), uint32(h), vk.FormatB8g8r8a8Unorm)
		if err != nil {
			device.EndFrame(frame)
			continue
		}

		view, img := device.ImageViewAndHandle(imageHandle)

		cb := device.CreateCmdBuffer(frame, thread)
		cb.CmdBeginRendering(uint32(w), uint32(h), []vkcore.ColorAttachment{{
			View:       view,
			Swapchain:  surface,
			Image:      img,
			ClearColor: [4]float32{0.02, 0.02, 0.05, 1.0},
			Load:       vk.AttachmentLoadOpClear,
		}})
		cb.CmdEndRendering()
		device.Submit(frame, cb)

		device.EndFrame(frame)
	}
}
