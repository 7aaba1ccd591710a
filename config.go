package vkcore

// Config carries the tunables a caller can override when standing up a
// Device. Defaults mirror the constants the allocator, transient buffer
// pool, and descriptor pool caches were sized against.
type Config struct {
	AppName    string
	EngineName string
	Validation bool

	// NumFrames is the depth of the frame ring, K in the frame-retirement
	// invariant. Two is the only value this core has been exercised with.
	NumFrames uint32

	// SwapchainDestroyDelay is the number of frames a torn-down swapchain
	// (and its surface) sits in the delay queue before actual destruction.
	SwapchainDestroyDelay uint32

	// TransientBufferSize bounds any single transient allocation and is
	// the size of each buffer drawn from the transient freelist.
	TransientBufferSize uint64

	// TLSFBlockSize is the size of each super-block the memory allocator
	// creates when no existing super-block can service a request.
	TLSFBlockSize uint64

	DescriptorPoolMaxSets            uint32
	DescriptorPoolSamplerCount       uint32
	DescriptorPoolUniformBufferCount uint32
	DescriptorPoolStorageBufferCount uint32
	DescriptorPoolSampledImageCount  uint32
}

// DefaultConfig returns the constants this core was designed against.
func DefaultConfig(appName string) Config {
	return Config{
		AppName:                          appName,
		EngineName:                       "vkcore",
		Validation:                       false,
		NumFrames:                        2,
		SwapchainDestroyDelay:            8,
		TransientBufferSize:              2 * 1024 * 1024,
		TLSFBlockSize:                    128 * 1024 * 1024,
		DescriptorPoolMaxSets:            500,
		DescriptorPoolSamplerCount:       100,
		DescriptorPoolUniformBufferCount: 500,
		DescriptorPoolStorageBufferCount: 500,
		DescriptorPoolSampledImageCount:  500,
	}
}
