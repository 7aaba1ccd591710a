package vkcore

import (
	"log"
	"os"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Device is the facade this core exposes: one universal queue, one frame
// ring, and every pool/allocator wired together. Grounded structurally on
// dieselvk/core.go's BaseCore (per-concern fields, three-logger split) and
// dieselvk/device.go's CoreDevice (physical-device bookkeeping), replacing
// their map-of-everything layout with the typed pools built out across
// this package.
type Device struct {
	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	memProps       vk.PhysicalDeviceMemoryProperties
	limits         vk.PhysicalDeviceLimits

	cfg Config

	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger

	universalQueue       *universalQueue
	universalQueueFamily uint32
	universalQueueFence  uint64
	universalTimeline    vk.Semaphore

	memory      *MemoryAllocator
	resources   *resourcePools
	descriptors *descriptorPools
	semaphores  *semaphorePool
	swapchains  *swapchainManager
	transients  *transientPool

	threadTokens threadTokens

	frameMu          sync.Mutex
	frameInFlight    bool
	frameCounterNext uint64
	frameSlots       []*Frame
}

func (d *Device) vkDevice() vk.Device { return d.device }

// Instance exposes the underlying vk.Instance for callers that must create
// a surface themselves (§6 "the core does not own the window").
func (d *Device) Instance() vk.Instance { return d.instance }

// NewDevice implements §2's bring-up: create the instance, pick the
// single universal queue family, create the device with the 1.3 feature
// chain, and construct every pool and allocator this core owns. surface
// may be vk.NullSurface for headless/compute-only use, matching §4.5's
// per-surface-optional design.
func NewDevice(cfg Config, surface vk.Surface, windowExtensions []string) (*Device, error) {
	infoLog := log.New(os.Stdout, "vkcore INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	warnLog := log.New(os.Stdout, "vkcore WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLog := log.New(os.Stderr, "vkcore ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	instance, layers, err := bringUpInstance(cfg, windowExtensions)
	if err != nil {
		errorLog.Printf("instance creation failed: %v", err)
		return nil, err
	}

	gpu, props, err := selectPhysicalDevice(instance)
	if err != nil {
		errorLog.Printf("physical device selection failed: %v", err)
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	infoLog.Printf("selected physical device %q", vk.ToString(props.DeviceName[:]))

	familyIndex, err := findUniversalQueueFamily(gpu, surface)
	if err != nil {
		errorLog.Printf("queue family selection failed: %v", err)
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	device, err := bringUpDevice(gpu, familyIndex, layers)
	if err != nil {
		errorLog.Printf("device creation failed: %v", err)
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memProps)
	memProps.Deref()

	props.Limits.Deref()

	d := &Device{
		instance:             instance,
		physicalDevice:       gpu,
		device:               device,
		memProps:             memProps,
		limits:               props.Limits,
		cfg:                  cfg,
		infoLog:              infoLog,
		warnLog:              warnLog,
		errorLog:             errorLog,
		universalQueueFamily: familyIndex,
		universalQueue:       newUniversalQueue(device, familyIndex),
	}

	timelineInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	semInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&timelineInfo),
	}
	var timeline vk.Semaphore
	if err := checkErr(vk.CreateSemaphore(device, &semInfo, nil, &timeline)); err != nil {
		errorLog.Printf("timeline semaphore creation failed: %v", err)
		vk.DestroyDevice(device, nil)
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	d.universalTimeline = timeline

	d.memory = NewMemoryAllocator(device, memProps, cfg.TLSFBlockSize)
	d.resources = newResourcePools()
	d.descriptors = newDescriptorPools(device, cfg)
	d.semaphores = newSemaphorePool(device)
	d.swapchains = newSwapchainManager(cfg.SwapchainDestroyDelay)
	d.transients = newTransientPool(device, d.memory, familyIndex, cfg.TransientBufferSize, props.Limits)

	d.frameSlots = make([]*Frame, cfg.NumFrames)

	return d, nil
}

// AcquireThreadToken hands out the next unused per-thread token (§5).
func (d *Device) AcquireThreadToken() ThreadToken {
	return d.threadTokens.acquire()
}

// Destroy waits for the device to go idle, drains every frame slot's
// deferred-destruction queue, then destroys the timeline semaphore, the
// device and the instance, mirroring asche/platform.go's Destroy. Command
// pools, descriptor pools, pooled semaphores, transient buffers, TLSF
// super-blocks and live swapchains are not destroyed individually.
func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.device)

	for _, f := range d.frameSlots {
		if f == nil {
			continue
		}
		f.destroyQueue.drain(d.device, d.memory)
	}

	if d.universalTimeline != vk.NullSemaphore {
		vk.DestroySemaphore(d.device, d.universalTimeline, nil)
	}
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
	}
}
