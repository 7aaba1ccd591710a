package vkcore

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// bufferRecord is the pooled record behind a Handle[bufferRecord]: the
// underlying handle, owned memory, and a map-reference count. A buffer
// with a non-zero map count must not be destroyed (§3.5, checked in
// DestroyBuffer).
type bufferRecord struct {
	buffer   vk.Buffer
	memory   MemoryAllocation
	mapCount int32
}

// imageKind discriminates the three shapes described by §3.5.
type imageKind int

const (
	imageUnique imageKind = iota
	imageShared
	imageSwapchain
)

// sharedImageInner is the manual-arc payload for a Shared image: the
// underlying handle and memory, reference-counted across every view
// sharing it. Release follows the "last-release-returns-inner-value"
// idiom (§9): destruction is never performed inside the release call
// itself, only enqueued by the caller that observed refs hit zero.
type sharedImageInner struct {
	image  vk.Image
	memory MemoryAllocation
	refs   int32
}

func (s *sharedImageInner) retain() { s.refs++ }

// release decrements the reference count and reports whether this was the
// last reference (in which case image/memory are returned for the caller
// to enqueue).
func (s *sharedImageInner) release() (vk.Image, MemoryAllocation, bool) {
	s.refs--
	if s.refs == 0 {
		return s.image, s.memory, true
	}
	return vk.Image(vk.NullHandle), MemoryAllocation{}, false
}

type imageRecord struct {
	kind imageKind
	view vk.ImageView

	// imageUnique
	uniqueImage  vk.Image
	uniqueMemory MemoryAllocation

	// imageShared
	shared *sharedImageInner

	// imageSwapchain
	swapchainSurface vk.Surface
	swapchainImage   vk.Image
}

// ImageViewAndHandle returns the view and the underlying vk.Image for any
// of the three record kinds, for callers building rendering attachments or
// barriers directly against a handle.
func (d *Device) ImageViewAndHandle(h Handle[imageRecord]) (vk.ImageView, vk.Image) {
	rec, ok := d.resources.images.Get(h)
	if !ok {
		orPanic(fmt.Errorf("vkcore: unknown image handle"))
	}
	switch rec.kind {
	case imageUnique:
		return rec.view, rec.uniqueImage
	case imageShared:
		return rec.view, rec.shared.image
	default:
		return rec.view, rec.swapchainImage
	}
}

type samplerRecord struct {
	sampler vk.Sampler
}

type bindGroupLayoutRecord struct {
	layout vk.DescriptorSetLayout
}

type pipelineRecord struct {
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

// resourcePools groups every handle pool this core manages, matching
// §3.5/§3.1's buffer/image/sampler/bind-group-layout/pipeline records.
type resourcePools struct {
	buffers           *Pool[bufferRecord]
	images            *Pool[imageRecord]
	samplers          *Pool[samplerRecord]
	bindGroupLayouts  *Pool[bindGroupLayoutRecord]
	pipelines         *Pool[pipelineRecord]
}

func newResourcePools() *resourcePools {
	return &resourcePools{
		buffers:          NewPool[bufferRecord](),
		images:           NewPool[imageRecord](),
		samplers:         NewPool[samplerRecord](),
		bindGroupLayouts: NewPool[bindGroupLayoutRecord](),
		pipelines:        NewPool[pipelineRecord](),
	}
}

// BufferDesc describes a CreateBuffer request.
type BufferDesc struct {
	Size     vk.DeviceSize
	Usage    vk.BufferUsageFlags
	Location MemoryLocation
}

// CreateBuffer creates the underlying buffer, allocates and binds its
// memory via the memory allocator, and inserts a record into the buffer
// pool.
func (d *Device) CreateBuffer(desc BufferDesc) Handle[bufferRecord] {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        desc.Size,
		Usage:       desc.Usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	orPanic(checkErr(vk.CreateBuffer(d.device, &info, nil, &buf)))

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &reqs)
	reqs.Deref()

	mem := d.memory.Allocate(reqs.MemoryTypeBits, desc.Location, reqs.Size, reqs.Alignment)
	orPanic(checkErr(vk.BindBufferMemory(d.device, buf, mem.Memory(), mem.Offset())))

	return d.resources.buffers.Insert(bufferRecord{buffer: buf, memory: mem})
}

// MapBuffer increments the buffer's map-reference counter and returns its
// host pointer. Requires the buffer's memory to be host-visible.
func (d *Device) MapBuffer(h Handle[bufferRecord]) (uintptr, error) {
	d.resources.buffers.mu.Lock()
	defer d.resources.buffers.mu.Unlock()

	if int(h.index) >= len(d.resources.buffers.slots) {
		return 0, fmt.Errorf("vkcore: map_buffer on unknown handle")
	}
	s := &d.resources.buffers.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return 0, fmt.Errorf("vkcore: map_buffer on unknown handle")
	}
	if s.value.memory.MappedPointer() == nil {
		return 0, fmt.Errorf("vkcore: map_buffer on non-host-visible buffer")
	}
	s.value.mapCount++
	return uintptr(s.value.memory.MappedPointer()), nil
}

// UnmapBuffer decrements the buffer's map-reference counter.
func (d *Device) UnmapBuffer(h Handle[bufferRecord]) {
	d.resources.buffers.mu.Lock()
	defer d.resources.buffers.mu.Unlock()
	if int(h.index) >= len(d.resources.buffers.slots) {
		return
	}
	s := &d.resources.buffers.slots[h.index]
	if s.occupied && s.generation == h.generation {
		s.value.mapCount--
	}
}

// DestroyBuffer enqueues the buffer's underlying handle and memory for
// deferred destruction in frame, after asserting no outstanding maps
// (§3.5, debug-checked).
func (d *Device) DestroyBuffer(frame *Frame, h Handle[bufferRecord]) {
	rec, ok := d.resources.buffers.Remove(h)
	if !ok {
		return
	}
	if rec.mapCount != 0 {
		orPanic(fmt.Errorf("vkcore: destroying a buffer that is still mapped (count=%d)", rec.mapCount))
	}
	frame.destroyQueue.pushBuffer(rec.buffer, rec.memory)
}

// CreateUniqueImage inserts a Unique image record, owning both its view
// and its underlying handle/memory.
func (d *Device) CreateUniqueImage(image vk.Image, view vk.ImageView, mem MemoryAllocation) Handle[imageRecord] {
	return d.resources.images.Insert(imageRecord{
		kind:         imageUnique,
		view:         view,
		uniqueImage:  image,
		uniqueMemory: mem,
	})
}

// PromoteToShared lazily converts a Unique image into a Shared one the
// first time a second view is requested on it, per §3.5: the original
// view becomes one of the shared views. Returns a handle for the new
// view; h stays valid and now refers to the shared original view.
func (d *Device) PromoteToShared(h Handle[imageRecord], extraView vk.ImageView) (Handle[imageRecord], error) {
	d.resources.images.mu.Lock()
	if int(h.index) >= len(d.resources.images.slots) {
		d.resources.images.mu.Unlock()
		return Handle[imageRecord]{}, fmt.Errorf("vkcore: unknown image handle")
	}
	s := &d.resources.images.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		d.resources.images.mu.Unlock()
		return Handle[imageRecord]{}, fmt.Errorf("vkcore: stale image handle")
	}
	if s.value.kind != imageUnique {
		d.resources.images.mu.Unlock()
		return Handle[imageRecord]{}, fmt.Errorf("vkcore: image is not Unique")
	}

	shared := &sharedImageInner{image: s.value.uniqueImage, memory: s.value.uniqueMemory, refs: 1}
	s.value = imageRecord{kind: imageShared, view: s.value.view, shared: shared}

	shared.retain()
	// Insert takes the pool mutex itself.
	d.resources.images.mu.Unlock()
	newHandle := d.resources.images.Insert(imageRecord{kind: imageShared, view: extraView, shared: shared})
	return newHandle, nil
}

// createSwapchainImage inserts a Swapchain image record. These are never
// directly destroyable; they are torn down only by swapchain teardown.
func (d *Device) createSwapchainImage(surface vk.Surface, view vk.ImageView, image vk.Image) Handle[imageRecord] {
	return d.resources.images.Insert(imageRecord{kind: imageSwapchain, view: view, swapchainSurface: surface, swapchainImage: image})
}

// DestroyImage implements §4.4's three-case image-destroy logic.
func (d *Device) DestroyImage(frame *Frame, h Handle[imageRecord]) {
	rec, ok := d.resources.images.Remove(h)
	if !ok {
		return
	}
	switch rec.kind {
	case imageUnique:
		frame.destroyQueue.pushImage(rec.uniqueImage, rec.view, rec.uniqueMemory)
	case imageShared:
		frame.destroyQueue.pushImageView(rec.view)
		if img, mem, last := rec.shared.release(); last {
			frame.destroyQueue.pushImage(img, vk.NullImageView, mem)
		}
	case imageSwapchain:
		orPanic(fmt.Errorf("vkcore: cannot directly destroy a swapchain image"))
	}
}

// DestroySampler, DestroyBindGroupLayout, DestroyPipeline are mechanical:
// remove from the pool, push into the current frame's destruction queue.

func (d *Device) DestroySampler(frame *Frame, h Handle[samplerRecord]) {
	rec, ok := d.resources.samplers.Remove(h)
	if !ok {
		return
	}
	frame.destroyQueue.samplers = append(frame.destroyQueue.samplers, rec.sampler)
}

func (d *Device) DestroyBindGroupLayout(frame *Frame, h Handle[bindGroupLayoutRecord]) {
	rec, ok := d.resources.bindGroupLayouts.Remove(h)
	if !ok {
		return
	}
	frame.destroyQueue.bindGroupLayouts = append(frame.destroyQueue.bindGroupLayouts, rec.layout)
}

func (d *Device) DestroyPipeline(frame *Frame, h Handle[pipelineRecord]) {
	rec, ok := d.resources.pipelines.Remove(h)
	if !ok {
		return
	}
	frame.destroyQueue.pipelineLayouts = append(frame.destroyQueue.pipelineLayouts, rec.layout)
	frame.destroyQueue.pipelines = append(frame.destroyQueue.pipelines, rec.pipeline)
}
