package interpose

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
)

func createdDevice(t *testing.T, rt *Runtime) native.DeviceID {
	t.Helper()
	inst, res := rt.CreateInstance(&native.InstanceCreateInfo{})
	if res != native.Success {
		t.Fatalf("CreateInstance = %v", res)
	}
	dev, res := rt.CreateDevice(inst, &native.DeviceCreateInfo{})
	if res != native.Success {
		t.Fatalf("CreateDevice = %v", res)
	}
	return dev
}

func TestSkipSuppressesCallButRunsAllBeforeHooks(t *testing.T) {
	rt, d := newRuntime(t)
	dev := createdDevice(t, rt)
	_ = dev

	var second bool
	rt.Hooks().Register("a", 1, hook.QueueSubmitBefore(func(q native.QueueID, b []native.SubmitInfo, skip *bool) native.Result {
		*skip = true
		return native.Success
	}))
	rt.Hooks().Register("b", 2, hook.QueueSubmitBefore(func(q native.QueueID, b []native.SubmitInfo, skip *bool) native.Result {
		second = true
		return native.Success
	}))

	if res := rt.QueueSubmit(1, nil); res != native.Success {
		t.Fatalf("QueueSubmit = %v", res)
	}
	if d.submitCalls != 0 {
		t.Error("driver submit ran despite skip")
	}
	if !second {
		t.Error("later before hook did not run after skip was set")
	}
}

func TestBeforeHookFailureAborts(t *testing.T) {
	rt, d := newRuntime(t)
	createdDevice(t, rt)

	var after int
	rt.Hooks().Register("fail", 1, hook.QueuePresentBefore(func(q native.QueueID, info *native.PresentInfo, skip *bool) native.Result {
		return native.ErrInvalidState
	}))
	rt.Hooks().Register("after", 1, hook.QueuePresentAfter(func(q native.QueueID, info *native.PresentInfo, res native.Result) native.Result {
		after++
		return native.Success
	}))

	presents := d.presentCalls
	if res := rt.QueuePresent(1, &native.PresentInfo{Swapchain: 1}); res != native.ErrInvalidState {
		t.Fatalf("QueuePresent = %v, want invalid-state", res)
	}
	if d.presentCalls != presents {
		t.Error("driver present ran after before hook failed")
	}
	if after != 0 {
		t.Error("after hooks ran despite aborted call")
	}
}

func TestPresentAfterHookSeesSkippedResult(t *testing.T) {
	rt, _ := newRuntime(t)
	createdDevice(t, rt)

	rt.Hooks().Register("skip", 1, hook.QueuePresentBefore(func(q native.QueueID, info *native.PresentInfo, skip *bool) native.Result {
		*skip = true
		return native.Success
	}))
	var got native.Result = native.ErrDeviceLost
	rt.Hooks().Register("watch", 2, hook.QueuePresentAfter(func(q native.QueueID, info *native.PresentInfo, res native.Result) native.Result {
		got = res
		return native.Success
	}))

	if res := rt.QueuePresent(1, &native.PresentInfo{Swapchain: 1}); res != native.Success {
		t.Fatalf("QueuePresent = %v", res)
	}
	if got != native.Success {
		t.Errorf("after hook saw %v, want success for a skipped call", got)
	}
}

func TestCreateDeviceAfterHooksRunWhenSkipped(t *testing.T) {
	rt, d := newRuntime(t)

	inst, res := rt.CreateInstance(&native.InstanceCreateInfo{})
	if res != native.Success {
		t.Fatalf("CreateInstance = %v", res)
	}

	rt.Hooks().Register("skip", 1, hook.CreateDeviceBefore(func(i native.InstanceID, info *native.DeviceCreateInfo, skip *bool) native.Result {
		*skip = true
		return native.Success
	}))
	var after int
	var seen native.DeviceID = 99
	rt.Hooks().Register("watch", 2, hook.CreateDeviceAfter(func(i native.InstanceID, info *native.DeviceCreateInfo, dev native.DeviceID) native.Result {
		after++
		seen = dev
		return native.Success
	}))

	id, res := rt.CreateDevice(inst, &native.DeviceCreateInfo{})
	if res != native.Success || id != native.InvalidID {
		t.Fatalf("CreateDevice = (%v, %v), want skipped", id, res)
	}
	if d.deviceCalls != 0 {
		t.Error("driver device creation ran despite skip")
	}
	if after != 1 {
		t.Errorf("after hook ran %d times, want 1", after)
	}
	if seen != native.InvalidID {
		t.Errorf("after hook saw handle %v, want invalid for a skipped call", seen)
	}
}

func TestCreateSwapchainAfterHooksRunWhenSkipped(t *testing.T) {
	rt, d := newRuntime(t)
	dev := createdDevice(t, rt)

	rt.Hooks().Register("skip", 1, hook.CreateSwapchainBefore(func(device native.DeviceID, info *native.SwapchainCreateInfo, skip *bool) native.Result {
		*skip = true
		return native.Success
	}))
	var after int
	var seen native.SwapchainID = 99
	rt.Hooks().Register("watch", 2, hook.CreateSwapchainAfter(func(device native.DeviceID, info *native.SwapchainCreateInfo, sc native.SwapchainID) native.Result {
		after++
		seen = sc
		return native.Success
	}))

	id, res := rt.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})
	if res != native.Success || id != native.InvalidID {
		t.Fatalf("CreateSwapchain = (%v, %v), want skipped", id, res)
	}
	if d.lastSwapchainInfo.ImageCount != 0 {
		t.Error("driver swapchain creation ran despite skip")
	}
	if after != 1 {
		t.Errorf("after hook ran %d times, want 1", after)
	}
	if seen != native.InvalidID {
		t.Errorf("after hook saw handle %v, want invalid for a skipped call", seen)
	}
	if len(d.destroyedSwaps) != 0 {
		t.Errorf("destroyed swapchains = %v, nothing was created", d.destroyedSwaps)
	}
}

func TestBeforeHookEditsSwapchainInfo(t *testing.T) {
	rt, d := newRuntime(t)
	dev := createdDevice(t, rt)

	rt.Hooks().Register("grow", 1, hook.CreateSwapchainBefore(func(device native.DeviceID, info *native.SwapchainCreateInfo, skip *bool) native.Result {
		if info.ImageCount < 3 {
			info.ImageCount = 3
		}
		return native.Success
	}))

	_, res := rt.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})
	if res != native.Success {
		t.Fatalf("CreateSwapchain = %v", res)
	}
	if d.lastSwapchainInfo.ImageCount != 3 {
		t.Errorf("driver saw image count %d, want 3", d.lastSwapchainInfo.ImageCount)
	}
}

func TestAfterHookFailureUndoesSwapchain(t *testing.T) {
	rt, d := newRuntime(t)
	dev := createdDevice(t, rt)

	rt.Hooks().Register("veto", 1, hook.CreateSwapchainAfter(func(device native.DeviceID, info *native.SwapchainCreateInfo, sc native.SwapchainID) native.Result {
		return native.ErrInitializationFailed
	}))

	id, res := rt.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})
	if res != native.ErrInitializationFailed || id != native.InvalidID {
		t.Fatalf("CreateSwapchain = (%v, %v), want rejected", id, res)
	}
	if len(d.destroyedSwaps) != 1 {
		t.Errorf("destroyed swapchains = %v, want the vetoed one", d.destroyedSwaps)
	}
}

func TestWaitIdleRunsPluginFlush(t *testing.T) {
	rt, d := newRuntime(t)
	dev := createdDevice(t, rt)

	tok := rt.NewFrameToken(nil)
	res := rt.SetTag(tok, 0, tagDepth(5), 0, false)
	if res != native.Success {
		t.Fatalf("SetTag = %v", res)
	}

	if res := rt.DeviceWaitIdle(dev); res != native.Success {
		t.Fatalf("DeviceWaitIdle = %v", res)
	}
	if d.waitIdleCalls != 1 {
		t.Errorf("driver wait-idle calls = %d, want 1", d.waitIdleCalls)
	}
	if _, res := rt.GetTag(tagDepth(5).Type, tok, 0, nil, false); res != native.ErrNotFound {
		t.Errorf("tag survived wait-idle flush: %v", res)
	}
}

func TestSubmitRunsWhilePresentBlocked(t *testing.T) {
	rt, d := newRuntime(t)
	createdDevice(t, rt)

	entered := make(chan struct{})
	release := make(chan struct{})
	rt.Hooks().Register("block", 1, hook.QueuePresentBefore(func(q native.QueueID, info *native.PresentInfo, skip *bool) native.Result {
		close(entered)
		<-release
		return native.Success
	}))

	done := make(chan native.Result, 1)
	go func() {
		done <- rt.QueuePresent(1, &native.PresentInfo{Swapchain: 1})
	}()
	<-entered

	// A submit on another queue must not wait for the stalled present.
	if res := rt.QueueSubmit(2, nil); res != native.Success {
		t.Fatalf("QueueSubmit = %v", res)
	}
	if d.submitCalls != 1 {
		t.Errorf("submit calls = %d, want 1", d.submitCalls)
	}

	close(release)
	if res := <-done; res != native.Success {
		t.Errorf("QueuePresent = %v", res)
	}
}

func TestDispatchRequiresDevice(t *testing.T) {
	rt, _ := newRuntime(t)

	if res := rt.QueueSubmit(1, nil); res != native.ErrNotFound {
		t.Errorf("QueueSubmit without device = %v, want not-found", res)
	}
	if res := rt.QueuePresent(1, &native.PresentInfo{}); res != native.ErrNotFound {
		t.Errorf("QueuePresent without device = %v, want not-found", res)
	}
	if _, res := rt.AcquireNextImage(1, 1, 0, native.InvalidID); res != native.ErrNotFound {
		t.Errorf("AcquireNextImage without device = %v, want not-found", res)
	}
}
