package vkcore

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// TestLowerMemoryBarrierTransferToFragmentShader is scenario 5 from the
// testable-properties list: TransferWrite -> FragmentShaderSampledImageRead.
func TestLowerMemoryBarrierTransferToFragmentShader(t *testing.T) {
	b := GlobalBarrier{
		PrevAccess: []Access{AccessTransferWrite},
		NextAccess: []Access{AccessFragmentShaderSampledImageRead},
	}
	out := lowerMemoryBarrier(b)

	if out.SrcStageMask != vk.PipelineStageFlags2(vk.PipelineStageTransferBit) {
		t.Fatalf("src stage = %v, want TRANSFER", out.SrcStageMask)
	}
	if out.SrcAccessMask != vk.AccessFlags2(vk.AccessTransferWriteBit) {
		t.Fatalf("src access = %v, want TRANSFER_WRITE", out.SrcAccessMask)
	}
	if out.DstStageMask != vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit) {
		t.Fatalf("dst stage = %v, want FRAGMENT_SHADER", out.DstStageMask)
	}
	if out.DstAccessMask != vk.AccessFlags2(vk.AccessShaderReadBit) {
		t.Fatalf("dst access = %v, want SHADER_READ", out.DstAccessMask)
	}
}

func TestLowerImageBarrierTransferToFragmentShaderOptimal(t *testing.T) {
	b := ImageBarrier{
		PrevAccess: []Access{AccessTransferWrite},
		NextAccess: []Access{AccessFragmentShaderSampledImageRead},
		PrevLayout: ImageLayoutOptimal,
		NextLayout: ImageLayoutOptimal,
	}
	out := lowerImageBarrier(b)

	if out.OldLayout != vk.ImageLayoutTransferDstOptimal {
		t.Fatalf("old layout = %v, want TransferDstOptimal", out.OldLayout)
	}
	if out.NewLayout != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Fatalf("new layout = %v, want ShaderReadOnlyOptimal", out.NewLayout)
	}
}

func TestLowerMemoryBarrierEmptyStagesSubstituted(t *testing.T) {
	out := lowerMemoryBarrier(GlobalBarrier{
		PrevAccess: []Access{AccessNone},
		NextAccess: []Access{AccessNone},
	})
	if out.SrcStageMask != vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit) {
		t.Fatalf("expected TOP_OF_PIPE substitution, got %v", out.SrcStageMask)
	}
	if out.DstStageMask != vk.PipelineStageFlags2(vk.PipelineStageBottomOfPipeBit) {
		t.Fatalf("expected BOTTOM_OF_PIPE substitution, got %v", out.DstStageMask)
	}
}

func TestSingleWriterInvariantPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on multi-writer access list")
		}
	}()
	lowerMemoryBarrier(GlobalBarrier{
		PrevAccess: []Access{AccessTransferWrite, AccessShaderWrite},
	})
}

func TestReadAfterReadNeedsNoVisibility(t *testing.T) {
	out := lowerMemoryBarrier(GlobalBarrier{
		PrevAccess: []Access{AccessFragmentShaderSampledImageRead},
		NextAccess: []Access{AccessVertexShaderSampledImageRead},
	})
	if out.DstAccessMask != 0 {
		t.Fatalf("read-after-read dst access = %v, want 0 (no visibility needed)", out.DstAccessMask)
	}
}
