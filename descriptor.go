package vkcore

import (
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// descriptorPools owns the global freelist of recycled descriptor pools
// and mints fresh ones sized per Config, grounded on mod.rs's
// request_descriptor_pool / cmd_set_bind_group retry-on-exhaustion loop
// and structurally on asche/managers.go's recycle-or-create idiom.
type descriptorPools struct {
	mu     sync.Mutex
	free   []vk.DescriptorPool
	device vk.Device
	cfg    Config
}

func newDescriptorPools(device vk.Device, cfg Config) *descriptorPools {
	return &descriptorPools{device: device, cfg: cfg}
}

func (d *descriptorPools) mint() vk.DescriptorPool {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampler, DescriptorCount: d.cfg.DescriptorPoolSamplerCount},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: d.cfg.DescriptorPoolUniformBufferCount},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: d.cfg.DescriptorPoolStorageBufferCount},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: d.cfg.DescriptorPoolSampledImageCount},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       d.cfg.DescriptorPoolMaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	orPanic(checkErr(vk.CreateDescriptorPool(d.device, &info, nil, &pool)))
	return pool
}

// acquireForThread draws a pool from the global freelist (minting one if
// empty) when the thread has none current, recording it in the thread
// slot and in the frame's recycle list, per §4.9. Reports whether the
// pool handed out was freshly minted (drawn from an empty freelist).
func (d *descriptorPools) acquireForThread(frame *Frame, slot *threadSlot) (freshlyMinted bool) {
	if slot.descPool != vk.NullDescriptorPool {
		return false
	}
	d.mu.Lock()
	var pool vk.DescriptorPool
	if n := len(d.free); n > 0 {
		pool = d.free[n-1]
		d.free = d.free[:n-1]
	}
	d.mu.Unlock()

	if pool == vk.NullDescriptorPool {
		pool = d.mint()
		freshlyMinted = true
	}
	slot.descPool = pool
	frame.recycleDescPools = append(frame.recycleDescPools, pool)
	return freshlyMinted
}

// allocate implements the fixed-pool-with-retry behavior of §4.9: a
// failure against a pool minted fresh for this very call is fatal (the
// fixed pool sizing cannot serve any single request); a failure against an
// existing (possibly recycled) pool nulls it out and retries, which forces
// a mint.
func (d *descriptorPools) allocate(frame *Frame, slot *threadSlot, layout vk.DescriptorSetLayout) vk.DescriptorSet {
	for {
		freshlyMinted := d.acquireForThread(frame, slot)

		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     slot.descPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		var set vk.DescriptorSet
		ret := vk.AllocateDescriptorSets(d.device, &info, &set)
		if ret == vk.Success {
			return set
		}

		if freshlyMinted {
			Fatal(checkErr(ret))
		}
		slot.descPool = vk.NullDescriptorPool
	}
}

// reset returns every frame-recycled descriptor pool to the global
// freelist, wholesale-resetting each first, per §4.9 ("Pools are reset
// wholesale... when their frame is retired").
func (d *descriptorPools) reset(recycled []vk.DescriptorPool) {
	for _, pool := range recycled {
		orPanic(checkErr(vk.ResetDescriptorPool(d.device, pool, 0)))
	}
	d.mu.Lock()
	d.free = append(d.free, recycled...)
	d.mu.Unlock()
}
