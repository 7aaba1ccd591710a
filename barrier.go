package vkcore

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

func errUnknownAccess(a Access) error {
	return fmt.Errorf("vkcore: unknown access %d", int(a))
}

// ImageLayout is the caller-facing layout intent for an ImageBarrier,
// distinct from vk.ImageLayout: Optimal defers to the access's implied
// layout, General forces VK_IMAGE_LAYOUT_GENERAL (or PresentSrcKhr for a
// PresentRead access), per §4.8 rule 3.
type ImageLayout int

const (
	ImageLayoutOptimal ImageLayout = iota
	ImageLayoutGeneral
)

// GlobalBarrier lowers to a VkMemoryBarrier2: a barrier with no image or
// layout-transition component.
type GlobalBarrier struct {
	PrevAccess []Access
	NextAccess []Access
}

// ImageBarrier additionally carries a layout transition and targets one
// image's subresource range.
type ImageBarrier struct {
	PrevAccess       []Access
	NextAccess       []Access
	PrevLayout       ImageLayout
	NextLayout       ImageLayout
	Image            vk.Image
	SubresourceRange vk.ImageSubresourceRange
}

func assertSingleWriter(accesses []Access) {
	for _, a := range accesses {
		if a.IsWrite() && len(accesses) != 1 {
			orPanic(fmt.Errorf("vkcore: write access types must be on their own, got %d accesses", len(accesses)))
		}
	}
}

// lowerMemoryBarrier implements §4.8 rules 1, 2, 4 for a barrier with no
// image component, grounded on mod.rs's vulkan_memory_barrier.
func lowerMemoryBarrier(b GlobalBarrier) vk.MemoryBarrier2 {
	assertSingleWriter(b.PrevAccess)
	assertSingleWriter(b.NextAccess)

	var srcStage, dstStage vk.PipelineStageFlags2
	var srcAccess, dstAccess vk.AccessFlags2

	for _, a := range b.PrevAccess {
		info := vulkanAccessInfo(a)
		srcStage |= info.stages
		if a.IsWrite() {
			srcAccess |= info.access
		}
	}
	for _, a := range b.NextAccess {
		info := vulkanAccessInfo(a)
		dstStage |= info.stages
		if srcAccess != 0 {
			dstAccess |= info.access
		}
	}

	if srcStage == 0 {
		srcStage = vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit)
	}
	if dstStage == 0 {
		dstStage = vk.PipelineStageFlags2(vk.PipelineStageBottomOfPipeBit)
	}

	return vk.MemoryBarrier2{
		SType:         vk.StructureTypeMemoryBarrier2,
		SrcStageMask:  srcStage,
		SrcAccessMask: srcAccess,
		DstStageMask:  dstStage,
		DstAccessMask: dstAccess,
	}
}

// resolveLayout picks the concrete vk.ImageLayout for one access under a
// caller-requested ImageLayout intent, per §4.8 rule 3.
func resolveLayout(want ImageLayout, a Access, info accessInfo) vk.ImageLayout {
	if want == ImageLayoutOptimal {
		return info.layout
	}
	if a == AccessPresentRead {
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutGeneral
}

// lowerImageBarrier implements §4.8 in full, grounded on mod.rs's
// vulkan_image_memory_barrier.
func lowerImageBarrier(b ImageBarrier) vk.ImageMemoryBarrier2 {
	assertSingleWriter(b.PrevAccess)
	assertSingleWriter(b.NextAccess)

	var srcStage, dstStage vk.PipelineStageFlags2
	var srcAccess, dstAccess vk.AccessFlags2
	oldLayout := vk.ImageLayoutUndefined
	newLayout := vk.ImageLayoutUndefined

	for _, a := range b.PrevAccess {
		info := vulkanAccessInfo(a)
		srcStage |= info.stages
		if a.IsWrite() {
			srcAccess |= info.access
		}
		layout := resolveLayout(b.PrevLayout, a, info)
		if oldLayout != vk.ImageLayoutUndefined && oldLayout != layout {
			orPanic(fmt.Errorf("vkcore: mixed image layout in prev_access"))
		}
		oldLayout = layout
	}

	for _, a := range b.NextAccess {
		info := vulkanAccessInfo(a)
		dstStage |= info.stages
		if srcAccess != 0 {
			dstAccess |= info.access
		}
		layout := resolveLayout(b.NextLayout, a, info)
		if newLayout != vk.ImageLayoutUndefined && newLayout != layout {
			orPanic(fmt.Errorf("vkcore: mixed image layout in next_access"))
		}
		newLayout = layout
	}

	if srcStage == 0 {
		srcStage = vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit)
	}
	if dstStage == 0 {
		dstStage = vk.PipelineStageFlags2(vk.PipelineStageBottomOfPipeBit)
	}

	return vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        srcStage,
		SrcAccessMask:       srcAccess,
		DstStageMask:        dstStage,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               b.Image,
		SubresourceRange:    b.SubresourceRange,
	}
}
