package vkcore

import vk "github.com/vulkan-go/vulkan"

// destroyQueue is one frame's set of deferred-destruction lists, per §4.4.
// Destruction requested during frame N is drained no earlier than frame
// N+K retirement (the K-lag invariant).
type destroyQueue struct {
	allocations      []MemoryAllocation
	buffers          []vk.Buffer
	bufferViews      []vk.BufferView
	images           []vk.Image
	imageViews       []vk.ImageView
	samplers         []vk.Sampler
	bindGroupLayouts []vk.DescriptorSetLayout
	pipelineLayouts  []vk.PipelineLayout
	pipelines        []vk.Pipeline
}

func (q *destroyQueue) pushBuffer(buf vk.Buffer, mem MemoryAllocation) {
	q.buffers = append(q.buffers, buf)
	q.allocations = append(q.allocations, mem)
}

func (q *destroyQueue) pushImage(img vk.Image, view vk.ImageView, mem MemoryAllocation) {
	q.images = append(q.images, img)
	q.imageViews = append(q.imageViews, view)
	q.allocations = append(q.allocations, mem)
}

func (q *destroyQueue) pushImageView(view vk.ImageView) {
	q.imageViews = append(q.imageViews, view)
}

func (q *destroyQueue) clear() {
	q.allocations = q.allocations[:0]
	q.buffers = q.buffers[:0]
	q.bufferViews = q.bufferViews[:0]
	q.images = q.images[:0]
	q.imageViews = q.imageViews[:0]
	q.samplers = q.samplers[:0]
	q.bindGroupLayouts = q.bindGroupLayouts[:0]
	q.pipelineLayouts = q.pipelineLayouts[:0]
	q.pipelines = q.pipelines[:0]
}

// drain executes every queued destruction against the device and releases
// every queued allocation via mem, then clears the queue. Called once per
// frame slot from begin_frame (§4.10 step 5).
func (q *destroyQueue) drain(device vk.Device, mem *MemoryAllocator) {
	for _, v := range q.bufferViews {
		vk.DestroyBufferView(device, v, nil)
	}
	for _, b := range q.buffers {
		vk.DestroyBuffer(device, b, nil)
	}
	for _, v := range q.imageViews {
		vk.DestroyImageView(device, v, nil)
	}
	for _, img := range q.images {
		vk.DestroyImage(device, img, nil)
	}
	for _, s := range q.samplers {
		vk.DestroySampler(device, s, nil)
	}
	for _, l := range q.bindGroupLayouts {
		vk.DestroyDescriptorSetLayout(device, l, nil)
	}
	for _, p := range q.pipelines {
		vk.DestroyPipeline(device, p, nil)
	}
	for _, l := range q.pipelineLayouts {
		vk.DestroyPipelineLayout(device, l, nil)
	}
	for _, a := range q.allocations {
		mem.Release(a)
	}
	q.clear()
}
