package vkcore

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// universalQueue finds the single queue family this core submits all work
// through (§5: "There is a single universal GPU queue"), grounded on
// dieselvk/queue.go's CoreQueue family-enumeration helpers but simplified
// from the teacher's separate-present-queue negotiation: this core
// requires graphics, compute and present support on the same family,
// since §5 rules out a separate present queue.
type universalQueue struct {
	familyIndex uint32
	queue       vk.Queue
}

func findUniversalQueueFamily(gpu vk.PhysicalDevice, surface vk.Surface) (uint32, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	want := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)

	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueFlags&want != want {
			continue
		}
		if surface != vk.NullSurface {
			var presentSupport vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, i, surface, &presentSupport)
			if presentSupport == vk.False {
				continue
			}
		}
		return i, nil
	}
	return 0, fmt.Errorf("vkcore: no queue family supports graphics+compute%s",
		map[bool]string{true: "+present", false: ""}[surface != vk.NullSurface])
}

func newUniversalQueue(device vk.Device, familyIndex uint32) *universalQueue {
	var q vk.Queue
	vk.GetDeviceQueue(device, familyIndex, 0, &q)
	return &universalQueue{familyIndex: familyIndex, queue: q}
}
