package vkcore

import vk "github.com/vulkan-go/vulkan"

// Access is a high-level access intent, the vocabulary §3.7 describes: a
// tagged enum carrying its own read/write classification, implied
// pipeline-stage mask, implied access mask, and implied optimal layout.
// The set and the table below are grounded directly on mod.rs's
// vulkan_access_info match.
type Access int

const (
	AccessNone Access = iota

	AccessIndirectBuffer
	AccessIndexBuffer
	AccessVertexBuffer

	AccessVertexShaderUniformBufferRead
	AccessVertexShaderSampledImageRead
	AccessVertexShaderOtherRead

	AccessFragmentShaderUniformBufferRead
	AccessFragmentShaderSampledImageRead
	AccessFragmentShaderOtherRead

	AccessColorAttachmentRead
	AccessDepthStencilAttachmentRead

	AccessShaderUniformBufferRead
	AccessShaderUniformBufferOrVertexBufferRead
	AccessShaderSampledImageRead
	AccessShaderOtherRead

	AccessTransferRead
	AccessHostRead
	AccessPresentRead

	AccessVertexShaderWrite
	AccessFragmentShaderWrite
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentWrite
	AccessShaderWrite
	AccessTransferWrite
	AccessHostPreInitializedWrite
	AccessHostWrite
	AccessColorAttachmentReadWrite

	AccessGeneral
)

// writeAccesses marks every Access that is a write (and therefore subject
// to the single-writer invariant, §3.7).
var writeAccesses = map[Access]bool{
	AccessVertexShaderWrite:           true,
	AccessFragmentShaderWrite:         true,
	AccessColorAttachmentWrite:        true,
	AccessDepthStencilAttachmentWrite: true,
	AccessShaderWrite:                 true,
	AccessTransferWrite:               true,
	AccessHostPreInitializedWrite:     true,
	AccessHostWrite:                   true,
	AccessColorAttachmentReadWrite:    true,
	AccessGeneral:                     true,
}

// IsWrite reports whether a carries write semantics.
func (a Access) IsWrite() bool { return writeAccesses[a] }

// IsRead reports whether a carries read semantics. Read/write access
// (ColorAttachmentReadWrite, General) counts as both.
func (a Access) IsRead() bool {
	switch a {
	case AccessColorAttachmentReadWrite, AccessGeneral, AccessNone:
		return true
	}
	return !a.IsWrite()
}

type accessInfo struct {
	stages vk.PipelineStageFlags2
	access vk.AccessFlags2
	layout vk.ImageLayout
}

var accessTable = map[Access]accessInfo{
	AccessNone: {0, 0, vk.ImageLayoutUndefined},

	AccessIndirectBuffer: {vk.PipelineStageFlags2(vk.PipelineStageDrawIndirectBit), vk.AccessFlags2(vk.AccessIndirectCommandReadBit), vk.ImageLayoutUndefined},
	AccessIndexBuffer:    {vk.PipelineStageFlags2(vk.PipelineStageVertexInputBit), vk.AccessFlags2(vk.AccessIndexReadBit), vk.ImageLayoutUndefined},
	AccessVertexBuffer:   {vk.PipelineStageFlags2(vk.PipelineStageVertexInputBit), vk.AccessFlags2(vk.AccessVertexAttributeReadBit), vk.ImageLayoutUndefined},

	AccessVertexShaderUniformBufferRead: {vk.PipelineStageFlags2(vk.PipelineStageVertexShaderBit), vk.AccessFlags2(vk.AccessUniformReadBit), vk.ImageLayoutUndefined},
	AccessVertexShaderSampledImageRead:  {vk.PipelineStageFlags2(vk.PipelineStageVertexShaderBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutShaderReadOnlyOptimal},
	AccessVertexShaderOtherRead:         {vk.PipelineStageFlags2(vk.PipelineStageVertexShaderBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutGeneral},

	AccessFragmentShaderUniformBufferRead: {vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit), vk.AccessFlags2(vk.AccessUniformReadBit), vk.ImageLayoutUndefined},
	AccessFragmentShaderSampledImageRead:  {vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutShaderReadOnlyOptimal},
	AccessFragmentShaderOtherRead:         {vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutGeneral},

	AccessColorAttachmentRead:        {vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), vk.AccessFlags2(vk.AccessColorAttachmentReadBit), vk.ImageLayoutColorAttachmentOptimal},
	AccessDepthStencilAttachmentRead: {vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), vk.AccessFlags2(vk.AccessDepthStencilAttachmentReadBit), vk.ImageLayoutColorAttachmentOptimal},

	AccessShaderUniformBufferRead:               {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessUniformReadBit), vk.ImageLayoutUndefined},
	AccessShaderUniformBufferOrVertexBufferRead: {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessUniformReadBit) | vk.AccessFlags2(vk.AccessVertexAttributeReadBit), vk.ImageLayoutUndefined},
	AccessShaderSampledImageRead:                {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutShaderReadOnlyOptimal},
	AccessShaderOtherRead:                       {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessShaderReadBit), vk.ImageLayoutGeneral},

	AccessTransferRead: {vk.PipelineStageFlags2(vk.PipelineStageTransferBit), vk.AccessFlags2(vk.AccessTransferReadBit), vk.ImageLayoutTransferSrcOptimal},
	AccessHostRead:     {vk.PipelineStageFlags2(vk.PipelineStageHostBit), vk.AccessFlags2(vk.AccessHostReadBit), vk.ImageLayoutGeneral},
	AccessPresentRead:  {0, 0, vk.ImageLayoutPresentSrc},

	AccessVertexShaderWrite:           {vk.PipelineStageFlags2(vk.PipelineStageVertexShaderBit), vk.AccessFlags2(vk.AccessShaderWriteBit), vk.ImageLayoutGeneral},
	AccessFragmentShaderWrite:         {vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit), vk.AccessFlags2(vk.AccessShaderWriteBit), vk.ImageLayoutGeneral},
	AccessColorAttachmentWrite:        {vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), vk.AccessFlags2(vk.AccessColorAttachmentWriteBit), vk.ImageLayoutColorAttachmentOptimal},
	AccessDepthStencilAttachmentWrite: {vk.PipelineStageFlags2(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags2(vk.PipelineStageLateFragmentTestsBit), vk.AccessFlags2(vk.AccessDepthStencilAttachmentWriteBit), vk.ImageLayoutDepthStencilAttachmentOptimal},
	AccessShaderWrite:                 {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessShaderWriteBit), vk.ImageLayoutGeneral},
	AccessTransferWrite:               {vk.PipelineStageFlags2(vk.PipelineStageTransferBit), vk.AccessFlags2(vk.AccessTransferWriteBit), vk.ImageLayoutTransferDstOptimal},
	AccessHostPreInitializedWrite:     {vk.PipelineStageFlags2(vk.PipelineStageHostBit), vk.AccessFlags2(vk.AccessHostWriteBit), vk.ImageLayoutPreinitialized},
	AccessHostWrite:                   {vk.PipelineStageFlags2(vk.PipelineStageHostBit), vk.AccessFlags2(vk.AccessHostWriteBit), vk.ImageLayoutGeneral},
	AccessColorAttachmentReadWrite:    {vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), vk.AccessFlags2(vk.AccessColorAttachmentReadBit) | vk.AccessFlags2(vk.AccessColorAttachmentWriteBit), vk.ImageLayoutColorAttachmentOptimal},
	AccessGeneral:                     {vk.PipelineStageFlags2(vk.PipelineStageAllCommandsBit), vk.AccessFlags2(vk.AccessColorAttachmentReadBit) | vk.AccessFlags2(vk.AccessColorAttachmentWriteBit), vk.ImageLayoutGeneral},
}

func vulkanAccessInfo(a Access) accessInfo {
	info, ok := accessTable[a]
	if !ok {
		orPanic(errUnknownAccess(a))
	}
	return info
}
