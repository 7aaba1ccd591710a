package vkcore

import (
	"errors"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkcore/internal/tlsf"
)

var (
	errNoSuitableMemoryType = errors.New("vkcore: no suitable memory type")
	errSuperBlockExhausted  = errors.New("vkcore: fresh super-block could not service allocation")
)

// MemoryLocation picks the property-flag requirement an allocation
// derives from, per §4.2 step 1.
type MemoryLocation int

const (
	MemoryLocationDevice MemoryLocation = iota
	MemoryLocationHostMapped
)

// superBlockData is the user data the TLSF allocator attaches to every
// super-block it registers: the device-memory object it wraps and, for
// host-visible memory, the host pointer vk.MapMemory returned for it.
type superBlockData struct {
	memory  vk.DeviceMemory
	mapped  unsafe.Pointer
}

// dedicatedRecord is a single-object allocation routed around the TLSF
// suballocator per the driver's dedicated-allocation preference.
type dedicatedRecord struct {
	memory vk.DeviceMemory
	mapped unsafe.Pointer
}

// memoryTypeAllocator is the per-memory-type-index pair described by §4.2:
// a TLSF suballocator plus a set of dedicated allocations.
type memoryTypeAllocator struct {
	mu         sync.Mutex
	tlsf       *tlsf.Tlsf
	dedicated  map[vk.DeviceMemory]*dedicatedRecord
	typeIndex  uint32
	propFlags  vk.MemoryPropertyFlags
}

// MemoryAllocation is the result of an allocator request: either a TLSF
// suballocation (dedicated == false, tlsfAlloc set) or a dedicated
// allocation (dedicated == true).
type MemoryAllocation struct {
	typeIndex uint32
	dedicated bool
	memory    vk.DeviceMemory
	offset    vk.DeviceSize
	size      vk.DeviceSize
	mapped    unsafe.Pointer
	tlsfAlloc tlsf.Allocation
}

// Memory returns the underlying vk.DeviceMemory object.
func (m MemoryAllocation) Memory() vk.DeviceMemory { return m.memory }

// Offset returns the byte offset into Memory this allocation occupies.
// Zero for dedicated allocations, per the invariant in §3.4.
func (m MemoryAllocation) Offset() vk.DeviceSize { return m.offset }

// MappedPointer returns the host pointer for this allocation's bytes, or
// nil if the memory type is not host-visible.
func (m MemoryAllocation) MappedPointer() unsafe.Pointer { return m.mapped }

// MemoryAllocator owns one memoryTypeAllocator per physical-device-reported
// memory type and implements §4.2's allocate/release flow.
type MemoryAllocator struct {
	device              vk.Device
	memProps            vk.PhysicalDeviceMemoryProperties
	types               []*memoryTypeAllocator
	superBlockSize      uint64
	dedicatedThreshold  uint64
}

// NewMemoryAllocator builds one allocator per reported memory type. The
// slice holds exactly MemoryTypeCount entries, so only reported type
// indices have an allocator, matching the "valid iff reported" invariant
// in §3.4.
func NewMemoryAllocator(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties, superBlockSize uint64) *MemoryAllocator {
	memProps.Deref()
	a := &MemoryAllocator{
		device:             device,
		memProps:           memProps,
		superBlockSize:     superBlockSize,
		dedicatedThreshold: superBlockSize / 2,
	}
	a.types = make([]*memoryTypeAllocator, memProps.MemoryTypeCount)
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		a.types[i] = &memoryTypeAllocator{
			tlsf:      tlsf.New(),
			dedicated: make(map[vk.DeviceMemory]*dedicatedRecord),
			typeIndex: i,
			propFlags: memProps.MemoryTypes[i].PropertyFlags,
		}
	}
	return a
}

func requiredProperties(loc MemoryLocation) vk.MemoryPropertyFlags {
	switch loc {
	case MemoryLocationHostMapped:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	default:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
}

// findMemoryTypeIndex picks the first reported type whose bits are set in
// typeBits and which carries every flag in want, grounded on mod.rs's
// find_memory_type_index.
func (a *MemoryAllocator) findMemoryTypeIndex(typeBits uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < a.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if a.types[i].propFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

// requiresDedicated reports whether a dedicated allocation is needed for
// this request: the driver marked it required via requireDedicated or
// preferred via preferDedicated, or the size alone reaches this
// allocator's threshold.
func (a *MemoryAllocator) requiresDedicated(size uint64, requireDedicated, preferDedicated bool) bool {
	if requireDedicated {
		return true
	}
	return preferDedicated || size >= a.dedicatedThreshold
}

// AllocateDedicated allocates a device-memory object sized exactly to
// size, maps it if host-visible, and records it in the type's dedicated
// set. Grounded on mod.rs's allocate_memory_dedicated.
func (a *MemoryAllocator) AllocateDedicated(typeBits uint32, loc MemoryLocation, size vk.DeviceSize) MemoryAllocation {
	typeIndex, ok := a.findMemoryTypeIndex(typeBits, requiredProperties(loc))
	if !ok {
		Fatal(errNoSuitableMemoryType)
	}
	t := a.types[typeIndex]

	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}
	var mem vk.DeviceMemory
	orPanic(checkErr(vk.AllocateMemory(a.device, &info, nil, &mem)))

	var mapped unsafe.Pointer
	if t.propFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		orPanic(checkErr(vk.MapMemory(a.device, mem, 0, size, 0, &mapped)))
	}

	t.mu.Lock()
	t.dedicated[mem] = &dedicatedRecord{memory: mem, mapped: mapped}
	t.mu.Unlock()

	return MemoryAllocation{typeIndex: typeIndex, dedicated: true, memory: mem, offset: 0, size: size, mapped: mapped}
}

// Allocate services a suballocated request, creating a new super-block
// and retrying once on the first failure (§4.2 step 4). Neither Allocate
// nor its callers route large requests to AllocateDedicated, so a request
// that a fresh super-block cannot hold is fatal.
func (a *MemoryAllocator) Allocate(typeBits uint32, loc MemoryLocation, size, alignment vk.DeviceSize) MemoryAllocation {
	typeIndex, ok := a.findMemoryTypeIndex(typeBits, requiredProperties(loc))
	if !ok {
		Fatal(errNoSuitableMemoryType)
	}
	t := a.types[typeIndex]

	t.mu.Lock()
	defer t.mu.Unlock()

	alloc, ok := t.tlsf.Alloc(uint64(size), uint64(alignment))
	if !ok {
		a.growSuperBlock(t)
		alloc, ok = t.tlsf.Alloc(uint64(size), uint64(alignment))
		if !ok {
			Fatal(errSuperBlockExhausted)
		}
	}

	data := t.tlsf.SuperBlockUserData(alloc.SuperBlock).(superBlockData)
	var mapped unsafe.Pointer
	if data.mapped != nil {
		mapped = unsafe.Pointer(uintptr(data.mapped) + uintptr(alloc.Offset))
	}

	return MemoryAllocation{
		typeIndex: typeIndex,
		dedicated: false,
		memory:    data.memory,
		offset:    vk.DeviceSize(alloc.Offset),
		size:      vk.DeviceSize(alloc.Size),
		mapped:    mapped,
		tlsfAlloc: alloc,
	}
}

func (a *MemoryAllocator) growSuperBlock(t *memoryTypeAllocator) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(a.superBlockSize),
		MemoryTypeIndex: t.typeIndex,
	}
	var mem vk.DeviceMemory
	orPanic(checkErr(vk.AllocateMemory(a.device, &info, nil, &mem)))

	var mapped unsafe.Pointer
	if t.propFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		orPanic(checkErr(vk.MapMemory(a.device, mem, 0, vk.DeviceSize(a.superBlockSize), 0, &mapped)))
	}

	t.tlsf.InsertSuperBlock(a.superBlockSize, superBlockData{memory: mem, mapped: mapped})
}

// Release routes a previously-issued allocation back to its owning
// structure: dedicated allocations are freed wholesale, suballocations go
// back to the TLSF free lists. Called when a deferred-destruction queue is
// drained: on frame retirement (§4.2 "Release") and from Device.Destroy.
func (a *MemoryAllocator) Release(m MemoryAllocation) {
	t := a.types[m.typeIndex]
	t.mu.Lock()
	defer t.mu.Unlock()

	if m.dedicated {
		delete(t.dedicated, m.memory)
		vk.FreeMemory(a.device, m.memory, nil)
		return
	}
	t.tlsf.Free(m.tlsfAlloc)
}
