package vkcore

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

const cmdBufferBatchSize = 4

// cmdBufferPool is a per-thread, per-frame-slot cache of preallocated
// command buffers with a bump cursor, grounded on asche/managers.go's
// CommandBufferManager.NewCommandBuffer (buffers[count], reset-if-reused,
// append-and-allocate-a-batch on exhaustion) and mod.rs's
// create_cmd_buffer (batch-of-4 allocation).
type cmdBufferPool struct {
	device  vk.Device
	pool    vk.CommandPool
	buffers []vk.CommandBuffer
	next    int // next_free_index
}

func newCmdBufferPool(device vk.Device, queueFamily uint32) *cmdBufferPool {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	orPanic(checkErr(vk.CreateCommandPool(device, &info, nil, &pool)))
	return &cmdBufferPool{device: device, pool: pool}
}

// reset marks every buffer in the pool recyclable again, the way
// CommandBufferManager.Reset zeroes count; it also resets the underlying
// vk.CommandPool so recording state on the driver side is cleared too.
func (c *cmdBufferPool) reset() {
	if len(c.buffers) > 0 {
		orPanic(checkErr(vk.ResetCommandPool(c.device, c.pool, 0)))
	}
	c.next = 0
}

// acquire draws the next preallocated command buffer from the pool,
// allocating a fresh batch of cmdBufferBatchSize when exhausted.
func (c *cmdBufferPool) acquire() vk.CommandBuffer {
	if c.next < len(c.buffers) {
		buf := c.buffers[c.next]
		c.next++
		return buf
	}

	batch := make([]vk.CommandBuffer, cmdBufferBatchSize)
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: cmdBufferBatchSize,
	}
	orPanic(checkErr(vk.AllocateCommandBuffers(c.device, &info, batch)))
	c.buffers = append(c.buffers, batch...)

	buf := c.buffers[c.next]
	c.next++
	return buf
}

func (c *cmdBufferPool) destroy() {
	if len(c.buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool, uint32(len(c.buffers)), c.buffers)
	}
	vk.DestroyCommandPool(c.device, c.pool, nil)
}

// boundPipeline records the currently bound pipeline for a CmdBuffer so
// cmd_set_bind_group can validate a pipeline is bound and recover its
// layout/bind point.
type boundPipeline struct {
	layout    vk.PipelineLayout
	bindPoint vk.PipelineBindPoint
	valid     bool
}

type swapchainTouch struct {
	image     vk.Image
	lastStage vk.PipelineStageFlags2
}

// CmdBuffer is the per-recording handle returned by CreateCmdBuffer. It
// borrows the frame and the thread token for its lifetime and is neither
// shareable across threads nor reusable after Submit — mirroring the
// "neither Send nor Copy" requirement of §4.6.
type CmdBuffer struct {
	handle  vk.CommandBuffer
	pipe    boundPipeline
	touched map[vk.Surface]*swapchainTouch
	frame   *Frame
	thread  ThreadToken
}

// CreateCmdBuffer implements §4.6's create_cmd_buffer: draw the next
// buffer from the thread's per-frame pool, begin it for single-submit
// use.
func (d *Device) CreateCmdBuffer(frame *Frame, thread ThreadToken) *CmdBuffer {
	slot := frame.threadSlot(thread)
	cb := slot.cmdPool.acquire()

	begin := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	orPanic(checkErr(vk.BeginCommandBuffer(cb, &begin)))

	return &CmdBuffer{
		handle:  cb,
		touched: make(map[vk.Surface]*swapchainTouch),
		frame:   frame,
		thread:  thread,
	}
}

// CmdBarrier lowers global and image barriers via the barrier translator
// and issues a single vkCmdPipelineBarrier2.
func (c *CmdBuffer) CmdBarrier(global *GlobalBarrier, images []ImageBarrier) {
	dep := vk.DependencyInfo{SType: vk.StructureTypeDependencyInfo}

	if global != nil {
		mb := lowerMemoryBarrier(*global)
		dep.MemoryBarrierCount = 1
		dep.PMemoryBarriers = []vk.MemoryBarrier2{mb}
	}
	if len(images) > 0 {
		lowered := make([]vk.ImageMemoryBarrier2, len(images))
		for i, ib := range images {
			lowered[i] = lowerImageBarrier(ib)
		}
		dep.ImageMemoryBarrierCount = uint32(len(lowered))
		dep.PImageMemoryBarriers = lowered
	}

	vk.CmdPipelineBarrier2(c.handle, &dep)
}

// CmdSetPipeline records the bound pipeline's layout and bind point and
// binds the underlying pipeline, per §4.6.
func (c *CmdBuffer) CmdSetPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline, layout vk.PipelineLayout) {
	c.pipe = boundPipeline{layout: layout, bindPoint: bindPoint, valid: true}
	vk.CmdBindPipeline(c.handle, bindPoint, pipeline)
}

// BindingWrite is one descriptor write in a cmd_set_bind_group call.
type BindingWrite struct {
	Binding     uint32
	Type        vk.DescriptorType
	Buffer      vk.Buffer      // unmanaged buffer bind (range = WHOLE_SIZE)
	Transient   *TransientRange // transient-range bind (explicit offset/length)
	ImageView   vk.ImageView
	ImageLayout ImageLayout // Optimal -> ReadOnlyOptimal, General -> General
	Sampler     vk.Sampler
}

// CmdSetBindGroup implements §4.6's cmd_set_bind_group: requires a
// currently-bound pipeline, draws a descriptor set from the thread's
// current pool (§4.9), writes every binding, and binds the set.
func (c *CmdBuffer) CmdSetBindGroup(d *Device, layout vk.DescriptorSetLayout, setIndex uint32, bindings []BindingWrite) {
	if !c.pipe.valid {
		orPanic(fmt.Errorf("vkcore: cmd_set_bind_group called with no bound pipeline"))
	}

	slot := c.frame.threadSlot(c.thread)
	set := d.descriptors.allocate(c.frame, slot, layout)

	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for _, b := range bindings {
		w := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      b.Binding,
			DescriptorCount: 1,
			DescriptorType:  b.Type,
		}
		switch {
		case b.Transient != nil:
			w.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.Transient.Buffer,
				Offset: vk.DeviceSize(b.Transient.Offset),
				Range:  vk.DeviceSize(b.Transient.Size),
			}}
		case b.Buffer != vk.NullBuffer:
			w.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.Buffer,
				Offset: 0,
				Range:  vk.WholeSize,
			}}
		default:
			imgLayout := vk.ImageLayoutGeneral
			if b.ImageLayout == ImageLayoutOptimal {
				imgLayout = vk.ImageLayoutShaderReadOnlyOptimal
			}
			w.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     b.Sampler,
				ImageView:   b.ImageView,
				ImageLayout: imgLayout,
			}}
		}
		writes = append(writes, w)
	}

	vk.UpdateDescriptorSets(d.vkDevice(), uint32(len(writes)), writes, 0, nil)
	vk.CmdBindDescriptorSets(c.handle, c.pipe.bindPoint, c.pipe.layout, setIndex, 1, []vk.DescriptorSet{set}, 0, nil)
}

// CmdSetIndexBuffer, CmdSetViewports, CmdSetScissors, CmdDraw,
// CmdDrawIndexed, CmdDispatch are mechanical forwarders per §4.6.

func (c *CmdBuffer) CmdSetIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(c.handle, buffer, offset, indexType)
}

func (c *CmdBuffer) CmdSetViewports(viewports []vk.Viewport) {
	vk.CmdSetViewport(c.handle, 0, uint32(len(viewports)), viewports)
}

func (c *CmdBuffer) CmdSetScissors(scissors []vk.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, uint32(len(scissors)), scissors)
}

func (c *CmdBuffer) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CmdBuffer) CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CmdBuffer) CmdDispatch(x, y, z uint32) {
	vk.CmdDispatch(c.handle, x, y, z)
}

// ColorAttachment is one color attachment passed to CmdBeginRendering. If
// Swapchain is non-nil the surface's image is tracked in swapchains_touched
// and an implicit Undefined -> AttachmentOptimal barrier is emitted.
type ColorAttachment struct {
	View       vk.ImageView
	Swapchain  vk.Surface
	Image      vk.Image
	ClearColor [4]float32
	Load       vk.AttachmentLoadOp
}

// CmdBeginRendering implements §4.6's cmd_begin_rendering, including the
// implicit swapchain-image layout transition and the double-attach
// assertion on swapchains_touched.
func (c *CmdBuffer) CmdBeginRendering(width, height uint32, colors []ColorAttachment) {
	attachments := make([]vk.RenderingAttachmentInfo, len(colors))
	for i, ca := range colors {
		if ca.Swapchain != vk.NullSurface {
			if _, already := c.touched[ca.Swapchain]; already {
				orPanic(fmt.Errorf("vkcore: surface already touched this command buffer"))
			}
			c.touched[ca.Swapchain] = &swapchainTouch{
				image:     ca.Image,
				lastStage: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit),
			}
			barrier := lowerImageBarrier(ImageBarrier{
				PrevAccess: []Access{AccessNone},
				NextAccess: []Access{AccessColorAttachmentWrite},
				PrevLayout: ImageLayoutOptimal,
				NextLayout: ImageLayoutOptimal,
				Image:      ca.Image,
				SubresourceRange: vk.ImageSubresourceRange{
					AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
					LevelCount: 1,
					LayerCount: 1,
				},
			})
			dep := vk.DependencyInfo{
				SType:                   vk.StructureTypeDependencyInfo,
				ImageMemoryBarrierCount: 1,
				PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{barrier},
			}
			vk.CmdPipelineBarrier2(c.handle, &dep)
		}

		attachments[i] = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   ca.View,
			ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:      ca.Load,
			StoreOp:     vk.AttachmentStoreOpStore,
			ClearValue: vk.ClearValue{
				Color: vk.NewClearValueColorFloat32(ca.ClearColor),
			},
		}
	}

	info := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(attachments)),
		PColorAttachments:    attachments,
	}
	vk.CmdBeginRendering(c.handle, &info)
}

func (c *CmdBuffer) CmdEndRendering() {
	vk.CmdEndRendering(c.handle)
}
