package vkcore

import (
	"io/ioutil"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// sliceUint32 reinterprets a SPIR-V byte blob as the uint32 words Vulkan
// expects, grounded on vulkan-go-asche/shader.go's LoadShaderModule and
// the cogentcore-core egpu backend's identical helper.
func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// loadShaderModule reads a SPIR-V file and creates a vk.ShaderModule from
// it, grounded on dieselvk/shader.go's LoadShaderModule.
func (d *Device) loadShaderModule(path string) (vk.ShaderModule, error) {
	buffer, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(buffer)),
		PCode:    sliceUint32(buffer),
	}
	var module vk.ShaderModule
	if err := checkErr(vk.CreateShaderModule(d.device, &info, nil, &module)); err != nil {
		return nil, err
	}
	return module, nil
}

// BindGroupLayoutBinding describes one binding slot in a CreateBindGroupLayout request.
type BindGroupLayoutBinding struct {
	Binding         uint32
	Type            vk.DescriptorType
	Count           uint32
	Stages          vk.ShaderStageFlags
	PartiallyBound  bool
	VariableCount   bool
}

// CreateBindGroupLayout builds a vk.DescriptorSetLayout from a flat list
// of bindings (§4.11), enabling descriptor-indexing binding flags when
// requested.
func (d *Device) CreateBindGroupLayout(bindings []BindGroupLayoutBinding) Handle[bindGroupLayoutRecord] {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	flags := make([]vk.DescriptorBindingFlags, len(bindings))
	anyFlags := false
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.Stages,
		}
		var f vk.DescriptorBindingFlags
		if b.PartiallyBound {
			f |= vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit)
		}
		if b.VariableCount {
			f |= vk.DescriptorBindingFlags(vk.DescriptorBindingVariableDescriptorCountBit)
		}
		if f != 0 {
			anyFlags = true
		}
		flags[i] = f
	}

	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	if anyFlags {
		bindingFlagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
			SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
			BindingCount:  uint32(len(flags)),
			PBindingFlags: flags,
		}
		info.PNext = unsafe.Pointer(&bindingFlagsInfo)
	}

	var layout vk.DescriptorSetLayout
	orPanic(checkErr(vk.CreateDescriptorSetLayout(d.device, &info, nil, &layout)))
	return d.resources.bindGroupLayouts.Insert(bindGroupLayoutRecord{layout: layout})
}

// SamplerDesc describes a CreateSampler request.
type SamplerDesc struct {
	MinFilter, MagFilter vk.Filter
	AddressMode          vk.SamplerAddressMode
	MipmapMode           vk.SamplerMipmapMode
	MaxAnisotropy        float32
}

// CreateSampler creates a vk.Sampler and inserts it into the sampler pool.
func (d *Device) CreateSampler(desc SamplerDesc) Handle[samplerRecord] {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               desc.MagFilter,
		MinFilter:               desc.MinFilter,
		MipmapMode:              desc.MipmapMode,
		AddressModeU:            desc.AddressMode,
		AddressModeV:            desc.AddressMode,
		AddressModeW:            desc.AddressMode,
		AnisotropyEnable:        vk.Bool32(boolToInt(desc.MaxAnisotropy > 0)),
		MaxAnisotropy:           desc.MaxAnisotropy,
		MaxLod:                 vk.LodClampNone,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
	}
	var sampler vk.Sampler
	orPanic(checkErr(vk.CreateSampler(d.device, &info, nil, &sampler)))
	return d.resources.samplers.Insert(samplerRecord{sampler: sampler})
}

func boolToInt(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ImageViewDesc describes a CreateImageView request against an already
// allocated image.
type ImageViewDesc struct {
	Image      vk.Image
	Format     vk.Format
	AspectMask vk.ImageAspectFlags
	ViewType   vk.ImageViewType
}

// CreateImageView creates a vk.ImageView for an existing image, used by
// callers building Unique/Shared images outside the swapchain path.
func (d *Device) CreateImageView(desc ImageViewDesc) vk.ImageView {
	viewType := desc.ViewType
	if viewType == 0 {
		viewType = vk.ImageViewType2d
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    desc.Image,
		ViewType: viewType,
		Format:   desc.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: desc.AspectMask,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	orPanic(checkErr(vk.CreateImageView(d.device, &info, nil, &view)))
	return view
}

// GraphicsPipelineDesc describes a CreateGraphicsPipeline request using
// dynamic rendering (§4.11): no vk.RenderPass/vk.Framebuffer, instead a
// VkPipelineRenderingCreateInfo naming the attachment formats directly.
type GraphicsPipelineDesc struct {
	VertexShaderPath   string
	FragmentShaderPath string
	ColorFormats       []vk.Format
	DepthFormat        vk.Format
	Layout             vk.PipelineLayout
	CullMode           vk.CullModeFlags
	DepthTest          bool
	DepthWrite          bool
}

// CreateGraphicsPipeline builds a pipeline grounded on
// dieselvk/pipeline.go's PipelineBuilder, generalized from its
// triangle-only fixed state into the spec's parameterized requirements
// and chained through VkPipelineRenderingCreateInfo instead of a render
// pass.
func (d *Device) CreateGraphicsPipeline(desc GraphicsPipelineDesc) Handle[pipelineRecord] {
	vsModule, err := d.loadShaderModule(desc.VertexShaderPath)
	orPanic(err)
	fsModule, err := d.loadShaderModule(desc.FragmentShaderPath)
	orPanic(err)
	defer vk.DestroyShaderModule(d.device, vsModule, nil)
	defer vk.DestroyShaderModule(d.device, fsModule, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
			Module: vsModule,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
			Module: fsModule,
			PName:  safeString("main"),
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:     vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    desc.CullMode,
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	colorBlendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorFormats))
	for i := range colorBlendAttachments {
		colorBlendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) |
				vk.ColorComponentFlags(vk.ColorComponentGBit) |
				vk.ColorComponentFlags(vk.ColorComponentBBit) |
				vk.ColorComponentFlags(vk.ColorComponentABit),
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(colorBlendAttachments)),
		PAttachments:    colorBlendAttachments,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToInt(desc.DepthTest)),
		DepthWriteEnable: vk.Bool32(boolToInt(desc.DepthWrite)),
		DepthCompareOp:   vk.CompareOpLess,
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    uint32(len(desc.ColorFormats)),
		PColorAttachmentFormats: desc.ColorFormats,
		DepthAttachmentFormat:   desc.DepthFormat,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(&renderingInfo),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDepthStencilState:  &depthStencil,
		PDynamicState:       &dynamicState,
		Layout:              desc.Layout,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	orPanic(checkErr(vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)))

	return d.resources.pipelines.Insert(pipelineRecord{pipeline: pipelines[0], layout: desc.Layout})
}

// ComputePipelineDesc describes a CreateComputePipeline request.
type ComputePipelineDesc struct {
	ShaderPath string
	Layout     vk.PipelineLayout
}

// CreateComputePipeline mirrors CreateGraphicsPipeline's shader-loading
// and pool-insertion shape for the compute stage.
func (d *Device) CreateComputePipeline(desc ComputePipelineDesc) Handle[pipelineRecord] {
	module, err := d.loadShaderModule(desc.ShaderPath)
	orPanic(err)
	defer vk.DestroyShaderModule(d.device, module, nil)

	info := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(vk.ShaderStageComputeBit),
			Module: module,
			PName:  safeString("main"),
		},
		Layout: desc.Layout,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	orPanic(checkErr(vk.CreateComputePipelines(d.device, vk.NullPipelineCache, 1,
		[]vk.ComputePipelineCreateInfo{info}, nil, pipelines)))

	return d.resources.pipelines.Insert(pipelineRecord{pipeline: pipelines[0], layout: desc.Layout})
}

// CreatePipelineLayout builds a vk.PipelineLayout from a set of bind
// group layouts, matching §3.1's pipeline/bind-group-layout relationship.
func (d *Device) CreatePipelineLayout(setLayouts []Handle[bindGroupLayoutRecord]) vk.PipelineLayout {
	vkLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, h := range setLayouts {
		rec, ok := d.resources.bindGroupLayouts.Get(h)
		if !ok {
			orPanic(errUnknownBindGroupLayout)
		}
		vkLayouts[i] = rec.layout
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(vkLayouts)),
		PSetLayouts:    vkLayouts,
	}
	var layout vk.PipelineLayout
	orPanic(checkErr(vk.CreatePipelineLayout(d.device, &info, nil, &layout)))
	return layout
}
