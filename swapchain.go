package vkcore

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

type swapchainState int

const (
	swapchainVacant swapchainState = iota
	swapchainOccupied
)

// surfaceRecord is the per-surface state machine described by §3.6,
// unified from the teacher's two historical swapchain backends (see
// DESIGN.md's Open Questions) into a single Vacant/Occupied machine with
// a fixed-depth delayed-destruction queue.
type surfaceRecord struct {
	surfaceFormat vk.SurfaceFormat

	state       swapchainState
	width       uint32
	height      uint32
	suboptimal  bool
	underlying  vk.Swapchain
	imageHandles []Handle[imageRecord]

	cachedFormats       []vk.SurfaceFormat
	cachedPresentModes  []vk.PresentMode
	capabilities        vk.SurfaceCapabilities
	presentSupportKnown bool
}

// Suboptimal reports whether the last acquire or present on this surface
// reported a still-valid but suboptimal swapchain. surfaceRecord is
// unexported and no exported API returns it, so callers outside this
// package cannot read the flag.
func (s *surfaceRecord) Suboptimal() bool { return s.suboptimal }

type delayedDestroy struct {
	swapchain vk.Swapchain
	surface   vk.Surface
}

// swapchainManager owns every surface's state and the fixed-depth delay
// queue that defers swapchain/surface destruction (§4.5).
type swapchainManager struct {
	mu       sync.Mutex
	surfaces map[vk.Surface]*surfaceRecord
	delay    [][]delayedDestroy // ring of SwapchainDestroyDelay buckets
	delayPos int
}

func newSwapchainManager(depth uint32) *swapchainManager {
	return &swapchainManager{
		surfaces: make(map[vk.Surface]*surfaceRecord),
		delay:    make([][]delayedDestroy, depth),
	}
}

func (m *swapchainManager) enqueueDestroy(swapchain vk.Swapchain, surface vk.Surface) {
	idx := (m.delayPos + len(m.delay) - 1) % len(m.delay)
	m.delay[idx] = append(m.delay[idx], delayedDestroy{swapchain: swapchain, surface: surface})
}

// advanceDelayQueue drains the oldest bucket and advances the ring,
// called once per BeginFrame (§4.10 step 6).
func (m *swapchainManager) advanceDelayQueue(d *Device) {
	m.mu.Lock()
	bucket := m.delay[m.delayPos]
	m.delay[m.delayPos] = nil
	m.delayPos = (m.delayPos + 1) % len(m.delay)
	m.mu.Unlock()

	for _, dd := range bucket {
		if dd.swapchain != vk.NullSwapchain {
			vk.DestroySwapchain(d.device, dd.swapchain, nil)
		}
		if dd.surface != vk.NullSurface {
			vk.DestroySurface(d.instance, dd.surface, nil)
		}
	}
}

func (m *swapchainManager) surfaceFor(surface vk.Surface) *surfaceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.surfaces[surface]
	if !ok {
		rec = &surfaceRecord{}
		m.surfaces[surface] = rec
	}
	return rec
}

// AcquireSwapchain implements §4.5's acquire_swapchain loop in full.
func (d *Device) AcquireSwapchain(frame *Frame, surface vk.Surface, width, height uint32, format vk.Format) (uint32, uint32, Handle[imageRecord], error) {
	rec := d.swapchains.surfaceFor(surface)

	if !rec.presentSupportKnown {
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(d.physicalDevice, d.universalQueueFamily, surface, &supported)
		if supported == vk.False {
			orPanic(fmt.Errorf("vkcore: universal queue family does not support present on this surface"))
		}
		var count uint32
		vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &count, nil)
		formats := make([]vk.SurfaceFormat, count)
		vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &count, formats)
		rec.cachedFormats = formats

		var pmCount uint32
		vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &pmCount, nil)
		modes := make([]vk.PresentMode, pmCount)
		vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &pmCount, modes)
		rec.cachedPresentModes = modes

		rec.surfaceFormat = selectSurfaceFormat(formats, format)
		rec.presentSupportKnown = true
	}

	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &caps)
	caps.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	rec.capabilities = caps

	width = clampU32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	height = clampU32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	for {
		switch rec.state {
		case swapchainVacant:
			d.createSwapchain(rec, surface, width, height, caps)
			rec.state = swapchainOccupied

		case swapchainOccupied:
			if rec.width != width || rec.height != height || rec.suboptimal {
				d.tearDownSwapchain(rec)
				rec.state = swapchainVacant
				continue
			}

			acquireSem := d.semaphores.requestTransient(frame)
			var imageIndex uint32
			ret := vk.AcquireNextImage(d.device, rec.underlying, vk.MaxUint64, acquireSem, vk.NullFence, &imageIndex)

			switch ret {
			case vk.Success:
				frame.presentSwapchains[surface] = &presentEntry{underlying: rec.underlying, imageIndex: imageIndex, acquire: acquireSem}
				return rec.width, rec.height, rec.imageHandles[imageIndex], nil
			case vk.Suboptimal:
				rec.suboptimal = true
				frame.presentSwapchains[surface] = &presentEntry{underlying: rec.underlying, imageIndex: imageIndex, acquire: acquireSem}
				return rec.width, rec.height, rec.imageHandles[imageIndex], nil
			case vk.ErrorOutOfDate:
				d.tearDownSwapchain(rec)
				rec.state = swapchainVacant
				return 0, 0, Handle[imageRecord]{}, ErrSwapchainOutOfDate
			default:
				Fatal(checkErr(ret))
			}
		}
	}
}

func selectSurfaceFormat(available []vk.SurfaceFormat, want vk.Format) vk.SurfaceFormat {
	if len(available) == 0 {
		Fatal(fmt.Errorf("vkcore: no surface formats reported"))
	}
	available[0].Deref()
	if available[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: want, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	for _, f := range available {
		f.Deref()
		if f.Format == want {
			return f
		}
	}
	return available[0]
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi != 0 && v > hi {
		return hi
	}
	return v
}

func (d *Device) createSwapchain(rec *surfaceRecord, surface vk.Surface, width, height uint32, caps vk.SurfaceCapabilities) {
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    caps.MinImageCount,
		ImageFormat:      rec.surfaceFormat.Format,
		ImageColorSpace:  rec.surfaceFormat.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: width, Height: height},
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     rec.underlying,
	}

	var swapchain vk.Swapchain
	orPanic(checkErr(vk.CreateSwapchain(d.device, &info, nil, &swapchain)))

	// The outgoing swapchain was just handed to the driver as OldSwapchain
	// above; its images may still be in flight for up to K frames, so it
	// goes through the same delayed-destruction queue as every other
	// swapchain teardown rather than being destroyed immediately.
	if rec.underlying != vk.NullSwapchain {
		d.swapchains.enqueueDestroy(rec.underlying, vk.NullSurface)
	}

	var count uint32
	vk.GetSwapchainImages(d.device, swapchain, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(d.device, swapchain, &count, images)

	handles := make([]Handle[imageRecord], count)
	for i, img := range images {
		view := d.createImageView(img, rec.surfaceFormat.Format)
		handles[i] = d.createSwapchainImage(surface, view, img)
	}

	rec.underlying = swapchain
	rec.imageHandles = handles
	rec.width = width
	rec.height = height
	rec.suboptimal = false
}

func (d *Device) createImageView(image vk.Image, format vk.Format) vk.ImageView {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	orPanic(checkErr(vk.CreateImageView(d.device, &info, nil, &view)))
	return view
}

// tearDownSwapchain removes the per-surface image-view handles ahead of a
// resize or an out-of-date error. rec.underlying is deliberately left set:
// the next createSwapchain call hands it to the driver as OldSwapchain
// (§4.5 step 5) and only then schedules it for delayed destruction, so a
// resize lets the driver reuse/transition the old swapchain's resources
// instead of forcing a cold recreate.
func (d *Device) tearDownSwapchain(rec *surfaceRecord) {
	for _, h := range rec.imageHandles {
		d.resources.images.Remove(h)
	}
	rec.imageHandles = nil
}

// DestroySwapchain implements §4.5's destroy_swapchain: remove the
// per-surface record and schedule its underlying swapchain (if any) and
// its surface together for delayed destruction.
func (d *Device) DestroySwapchain(surface vk.Surface) {
	d.swapchains.mu.Lock()
	rec, ok := d.swapchains.surfaces[surface]
	if ok {
		delete(d.swapchains.surfaces, surface)
	}
	d.swapchains.mu.Unlock()
	if !ok {
		return
	}
	for _, h := range rec.imageHandles {
		d.resources.images.Remove(h)
	}
	d.swapchains.enqueueDestroy(rec.underlying, surface)
}

// touch records an acquire-wait for surface in the submit's wait list and
// returns the frame's presentEntry for the caller to attach a release
// semaphore to, per §4.7 step 2.
func (m *swapchainManager) touch(frame *Frame, surface vk.Surface, stageMask vk.PipelineStageFlags2, waits *[]vk.SemaphoreSubmitInfo) *presentEntry {
	entry, ok := frame.presentSwapchains[surface]
	if !ok {
		orPanic(fmt.Errorf("vkcore: submit touched a surface that was never acquired this frame"))
	}
	*waits = append(*waits, vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: entry.acquire,
		StageMask: stageMask,
	})
	return entry
}

// present issues one batched present call for every surface touched this
// frame, asserting each got a release semaphore from Submit (§4.10 step
// 1/2 of end_frame).
func (m *swapchainManager) present(d *Device, frame *Frame) {
	if len(frame.presentSwapchains) == 0 {
		return
	}

	swapchains := make([]vk.Swapchain, 0, len(frame.presentSwapchains))
	imageIndices := make([]uint32, 0, len(frame.presentSwapchains))
	waitSemaphores := make([]vk.Semaphore, 0, len(frame.presentSwapchains))
	surfaces := make([]vk.Surface, 0, len(frame.presentSwapchains))

	for surface, entry := range frame.presentSwapchains {
		if entry.release == vk.NullSemaphore {
			orPanic(fmt.Errorf("vkcore: acquired swapchain image on surface was never submitted (missing release semaphore)"))
		}
		swapchains = append(swapchains, entry.underlying)
		imageIndices = append(imageIndices, entry.imageIndex)
		waitSemaphores = append(waitSemaphores, entry.release)
		surfaces = append(surfaces, surface)
	}

	results := make([]vk.Result, len(swapchains))
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSemaphores)),
		PWaitSemaphores:    waitSemaphores,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      imageIndices,
		PResults:           results,
	}
	ret := vk.QueuePresent(d.universalQueue.queue, &info)
	if ret != vk.Success && ret != vk.Suboptimal && ret != vk.ErrorOutOfDate {
		Fatal(checkErr(ret))
	}

	for i, surface := range surfaces {
		if results[i] == vk.Suboptimal {
			if rec, ok := m.surfaces[surface]; ok {
				rec.suboptimal = true
			}
		} else if results[i] != vk.Success {
			Fatal(checkErr(results[i]))
		}
	}
}
