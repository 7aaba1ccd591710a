package vkcore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// ErrSwapchainOutOfDate is the one recoverable error this core surfaces.
// It is returned from AcquireSwapchain; every other error is fatal.
var ErrSwapchainOutOfDate = errors.New("vkcore: swapchain out of date")

var errUnknownBindGroupLayout = errors.New("vkcore: unknown or stale bind group layout handle")

// isError reports whether ret is anything other than vk.Success.
func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// checkErr turns ret into an error tagged with the caller's location, or
// nil on success.
func checkErr(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	if pc, file, line, ok := runtime.Caller(1); ok {
		fn := runtime.FuncForPC(pc)
		name := "unknown"
		if fn != nil {
			name = fn.Name()
		}
		return fmt.Errorf("vulkan error %d in %s (%s:%d)", ret, name, file, line)
	}
	return fmt.Errorf("vulkan error %d", ret)
}

// orPanic is for programming-error invariants (§7): double-acquire,
// destroying a mapped buffer, and the like. It always panics since these
// are debug-checked and not supposed to be reachable through the public
// API. Most Vulkan call results are also checked through it, as
// orPanic(checkErr(ret)), so an unexpected driver result panics there.
func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// Fatal reports an unrecoverable driver failure per §7 and aborts the
// process. It is called on a few paths (no suitable memory type, an
// exhausted fresh super-block, descriptor allocation failing on a fresh
// pool, no reported surface formats, unexpected acquire/present results);
// other Vulkan results go
// through orPanic(checkErr(ret)) and panic instead.
func Fatal(err error) {
	if err == nil {
		return
	}
	log.Output(2, fmt.Sprintf("vkcore: fatal: %v", err))
	os.Exit(1)
}

// recoverInto converts a panic into *err, preserving the stack, for use by
// API boundaries that must not let a programming-error panic escape into
// driver teardown half-finished.
func recoverInto(err *error) {
	if v := recover(); v != nil {
		stack := make([]byte, 16*1024)
		n := runtime.Stack(stack, false)
		switch e := v.(type) {
		case error:
			*err = fmt.Errorf("%w\n%s", e, stack[:n])
		default:
			*err = fmt.Errorf("%v\n%s", v, stack[:n])
		}
	}
}
