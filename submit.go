package vkcore

import (
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"
)

// Submit implements §4.7 end to end, grounded directly on mod.rs's
// submit: bump the universal timeline fence, emit an implicit
// AttachmentOptimal -> PresentSrcKhr barrier for every swapchain image
// this command buffer touched, add each touched surface's acquire
// semaphore to the wait list via the swapchain manager, mint a release
// semaphore per touched surface from the semaphore pool and attach it to
// that surface's present entry, end the command buffer, and submit
// with the accumulated wait/signal lists plus an unconditional timeline
// signal.
func (d *Device) Submit(frame *Frame, cb *CmdBuffer) {
	fence := atomic.AddUint64(&d.universalQueueFence, 1)
	frame.signaledValue = fence

	var waits, signals []vk.SemaphoreSubmitInfo

	for surface, touch := range cb.touched {
		barrier := vk.ImageMemoryBarrier2{
			SType:               vk.StructureTypeImageMemoryBarrier2,
			SrcStageMask:        vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:       vk.AccessFlags2(vk.AccessColorAttachmentWriteBit),
			DstStageMask:        vk.PipelineStageFlags2(vk.PipelineStageBottomOfPipeBit),
			DstAccessMask:       0,
			SrcQueueFamilyIndex: d.universalQueueFamily,
			DstQueueFamilyIndex: d.universalQueueFamily,
			OldLayout:           vk.ImageLayoutColorAttachmentOptimal,
			NewLayout:           vk.ImageLayoutPresentSrc,
			Image:               touch.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		dep := vk.DependencyInfo{
			SType:                   vk.StructureTypeDependencyInfo,
			ImageMemoryBarrierCount: 1,
			PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{barrier},
		}
		vk.CmdPipelineBarrier2(cb.handle, &dep)

		entry := d.swapchains.touch(frame, surface, touch.lastStage, &waits)
		release := d.semaphores.requestTransient(frame)
		entry.release = release
		signals = append(signals, vk.SemaphoreSubmitInfo{
			SType:     vk.StructureTypeSemaphoreSubmitInfo,
			Semaphore: release,
			StageMask: touch.lastStage,
		})
	}

	orPanic(checkErr(vk.EndCommandBuffer(cb.handle)))

	signals = append(signals, vk.SemaphoreSubmitInfo{
		SType:       vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore:   d.universalTimeline,
		Value:       fence,
		StageMask:   vk.PipelineStageFlags2(vk.PipelineStageAllGraphicsBit),
	})

	cmdInfos := []vk.CommandBufferSubmitInfo{{
		SType:         vk.StructureTypeCommandBufferSubmitInfo,
		CommandBuffer: cb.handle,
		DeviceMask:    1,
	}}

	submit := vk.SubmitInfo2{
		SType:                    vk.StructureTypeSubmitInfo2,
		WaitSemaphoreInfoCount:   uint32(len(waits)),
		PWaitSemaphoreInfos:      waits,
		CommandBufferInfoCount:   uint32(len(cmdInfos)),
		PCommandBufferInfos:      cmdInfos,
		SignalSemaphoreInfoCount: uint32(len(signals)),
		PSignalSemaphoreInfos:    signals,
	}
	orPanic(checkErr(vk.QueueSubmit2(d.universalQueue.queue, 1, []vk.SubmitInfo2{submit}, vk.NullFence)))
}
