package vkcore

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// RawWindowKind discriminates the windowing-system handles a surface can
// be created from (§4.12).
type RawWindowKind int

const (
	RawWindowXlib RawWindowKind = iota
	RawWindowXcb
	RawWindowWayland
)

// RawWindow is the tagged union of native window handles GLFW can hand
// back, matching whichever windowing backend the platform is running
// under.
type RawWindow struct {
	Kind RawWindowKind

	XlibDisplay uintptr
	XlibWindow  uintptr

	XcbConnection uintptr
	XcbWindow     uint32

	WaylandDisplay uintptr
	WaylandSurface uintptr
}

// RawWindowFromGLFW resolves a GLFW window handle into a RawWindow by
// probing GLFW's platform accessor in priority order. GLFW only exposes
// the accessor matching the platform it was built against; the others
// return zero values, which is how the right case is detected here.
func RawWindowFromGLFW(window *glfw.Window) (RawWindow, error) {
	if conn := glfw.GetX11Display(); conn != nil {
		return RawWindow{
			Kind:        RawWindowXlib,
			XlibDisplay: uintptr(conn),
			XlibWindow:  uintptr(window.GetX11Window()),
		}, nil
	}
	if display := glfw.GetWaylandDisplay(); display != nil {
		return RawWindow{
			Kind:           RawWindowWayland,
			WaylandDisplay: uintptr(display),
			WaylandSurface: uintptr(window.GetWaylandWindow()),
		}, nil
	}
	return RawWindow{}, fmt.Errorf("vkcore: no supported windowing backend found for this GLFW build")
}

// instanceLayers is the fixed validation-layer set this core requests
// when Config.Validation is set, grounded on dieselvk/core.go's
// GetValidationLayers.
func instanceLayers() []string {
	return []string{
		"VK_LAYER_KHRONOS_synchronization2",
		"VK_LAYER_KHRONOS_validation",
	}
}

// requiredDeviceExtensions is the fixed device-extension set this core
// always requests: swapchain support plus the 1.3 feature surface
// (dynamic rendering, synchronization2) on drivers that expose them as
// extensions rather than as core 1.3 features.
func requiredDeviceExtensions() []string {
	return []string{
		"VK_KHR_swapchain",
		"VK_KHR_dynamic_rendering",
		"VK_KHR_synchronization2",
		"VK_KHR_timeline_semaphore",
		"VK_EXT_descriptor_indexing",
		"VK_KHR_draw_indirect_count",
		"VK_KHR_uniform_buffer_standard_layout",
	}
}

func checkExisting(actual, required []string) (result []string, missing int) {
	for _, r := range required {
		found := false
		for _, a := range actual {
			if a == r {
				found = true
				break
			}
		}
		if found {
			result = append(result, safeString(r))
		} else {
			missing++
		}
	}
	return result, missing
}

func instanceExtensionNames() (names []string, err error) {
	var count uint32
	orPanic(checkErr(vk.EnumerateInstanceExtensionProperties("", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(checkErr(vk.EnumerateInstanceExtensionProperties("", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func deviceExtensionNames(gpu vk.PhysicalDevice) (names []string, err error) {
	var count uint32
	orPanic(checkErr(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	orPanic(checkErr(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func instanceLayerNames() (names []string, err error) {
	var count uint32
	orPanic(checkErr(vk.EnumerateInstanceLayerProperties(&count, nil)))
	list := make([]vk.LayerProperties, count)
	orPanic(checkErr(vk.EnumerateInstanceLayerProperties(&count, list)))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// bringUpInstance creates the vk.Instance, optionally enabling
// validation layers, grounded on asche/platform.go's NewPlatform and
// dieselvk/core.go's CreateGraphicsInstance.
func bringUpInstance(cfg Config, windowExtensions []string) (vk.Instance, []string, error) {
	actualExt, err := instanceExtensionNames()
	if err != nil {
		return nil, nil, err
	}
	wanted := append([]string{}, windowExtensions...)
	extensions, missing := checkExisting(actualExt, wanted)
	if missing > 0 {
		log.Printf("vkcore: missing %d requested instance extensions", missing)
	}

	var layers []string
	if cfg.Validation {
		actualLayers, err := instanceLayerNames()
		if err != nil {
			return nil, nil, err
		}
		layers, missing = checkExisting(actualLayers, instanceLayers())
		if missing > 0 {
			log.Printf("vkcore: missing %d requested validation layers", missing)
		}
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString(cfg.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := checkErr(ret); err != nil {
		return nil, nil, err
	}
	vk.InitInstance(instance)
	return instance, layers, nil
}

// selectPhysicalDevice picks the first GPU reporting Vulkan 1.3 support,
// simplified from asche/platform.go's "get the first one, multiple GPUs
// not supported yet".
func selectPhysicalDevice(instance vk.Instance) (vk.PhysicalDevice, vk.PhysicalDeviceProperties, error) {
	var count uint32
	if err := checkErr(vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, vk.PhysicalDeviceProperties{}, err
	}
	if count == 0 {
		return nil, vk.PhysicalDeviceProperties{}, fmt.Errorf("vkcore: no Vulkan physical devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := checkErr(vk.EnumeratePhysicalDevices(instance, &count, gpus)); err != nil {
		return nil, vk.PhysicalDeviceProperties{}, err
	}
	for _, gpu := range gpus {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		if props.ApiVersion >= uint32(vk.MakeVersion(1, 3, 0)) {
			return gpu, props, nil
		}
	}
	return nil, vk.PhysicalDeviceProperties{}, fmt.Errorf("vkcore: no Vulkan 1.3 physical device found")
}

// bringUpDevice creates the logical device with the single universal
// queue and the 1.3 feature chain required by §2.
func bringUpDevice(gpu vk.PhysicalDevice, familyIndex uint32, layers []string) (vk.Device, error) {
	actualExt, err := deviceExtensionNames(gpu)
	if err != nil {
		return nil, err
	}
	extensions, missing := checkExisting(actualExt, requiredDeviceExtensions())
	if missing > 0 {
		log.Printf("vkcore: missing %d required device extensions", missing)
	}

	sync2Features := vk.PhysicalDeviceSynchronization2Features{
		SType:            vk.StructureTypePhysicalDeviceSynchronization2Features,
		Synchronization2: vk.True,
	}
	dynRenderFeatures := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		PNext:            unsafe.Pointer(&sync2Features),
		DynamicRendering: vk.True,
	}
	timelineFeatures := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures,
		PNext:             unsafe.Pointer(&dynRenderFeatures),
		TimelineSemaphore: vk.True,
	}
	descIndexFeatures := vk.PhysicalDeviceDescriptorIndexingFeatures{
		SType:                                     vk.StructureTypePhysicalDeviceDescriptorIndexingFeatures,
		PNext:                                     unsafe.Pointer(&timelineFeatures),
		ShaderSampledImageArrayNonUniformIndexing: vk.True,
		DescriptorBindingPartiallyBound:           vk.True,
		DescriptorBindingVariableDescriptorCount:  vk.True,
		RuntimeDescriptorArray:                    vk.True,
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: familyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	var device vk.Device
	ret := vk.CreateDevice(gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&descIndexFeatures),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &device)
	if err := checkErr(ret); err != nil {
		return nil, err
	}
	return device, nil
}
