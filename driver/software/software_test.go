package software

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/interpose/native"
)

func initDriver(t *testing.T) *Driver {
	t.Helper()
	d := New()
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func createDevice(t *testing.T, d *Driver) (native.InstanceID, native.DeviceID) {
	t.Helper()
	tab := d.Table()
	inst, r := tab.CreateInstance(&native.InstanceCreateInfo{})
	if r != native.Success {
		t.Fatalf("CreateInstance = %v", r)
	}
	dev, r := tab.CreateDevice(inst, &native.DeviceCreateInfo{
		Queues: []native.QueueRequest{
			{Family: native.QueueFamilyGraphics, Count: 2},
			{Family: native.QueueFamilyCompute, Count: 1},
		},
	})
	if r != native.Success {
		t.Fatalf("CreateDevice = %v", r)
	}
	return inst, dev
}

func TestRegisteredAsSoftware(t *testing.T) {
	if !native.IsRegistered(native.DriverSoftware) {
		t.Fatal("software driver not registered")
	}
	d := native.Get(native.DriverSoftware)
	if d == nil || d.Name() != native.DriverSoftware {
		t.Errorf("Get returned %v", d)
	}
}

func TestTableComplete(t *testing.T) {
	d := initDriver(t)
	if !d.Table().Complete() {
		t.Error("dispatch table has nil entry points")
	}
}

func TestCreateInstanceRequiresInit(t *testing.T) {
	d := New()
	if _, r := d.Table().CreateInstance(&native.InstanceCreateInfo{}); r != native.ErrNotInitialized {
		t.Errorf("CreateInstance before Init = %v, want not-initialized", r)
	}
}

func TestUnknownInstanceExtensionRejected(t *testing.T) {
	d := initDriver(t)
	_, r := d.Table().CreateInstance(&native.InstanceCreateInfo{
		Extensions: []string{"VK_EXT_does_not_exist"},
	})
	if r != native.ErrExtensionNotPresent {
		t.Errorf("CreateInstance = %v, want extension-not-present", r)
	}
}

func TestDeviceQueueLookup(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()

	q0, r := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 0)
	if r != native.Success || !q0.IsValid() {
		t.Fatalf("graphics queue 0 = (%v, %v)", q0, r)
	}
	q1, r := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 1)
	if r != native.Success || q1 == q0 {
		t.Errorf("graphics queue 1 = (%v, %v), want distinct handle", q1, r)
	}
	if _, r := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 2); r != native.ErrNotFound {
		t.Errorf("queue index past allocation = %v, want not-found", r)
	}
	if _, r := tab.GetDeviceQueue(dev, native.QueueFamilyOpticalFlow, 0); r != native.ErrNotFound {
		t.Errorf("unallocated family = %v, want not-found", r)
	}
}

func TestDeviceRejectsOverAllocation(t *testing.T) {
	d := initDriver(t)
	tab := d.Table()
	inst, _ := tab.CreateInstance(&native.InstanceCreateInfo{})

	_, r := tab.CreateDevice(inst, &native.DeviceCreateInfo{
		Queues: []native.QueueRequest{{Family: native.QueueFamilyOpticalFlow, Count: 2}},
	})
	if r != native.ErrInitializationFailed {
		t.Errorf("CreateDevice over family limit = %v, want initialization-failed", r)
	}
}

func TestDeviceRejectsUnknownFeature(t *testing.T) {
	d := initDriver(t)
	tab := d.Table()
	inst, _ := tab.CreateInstance(&native.InstanceCreateInfo{})

	_, r := tab.CreateDevice(inst, &native.DeviceCreateInfo{Features12: []string{"rayQuery"}})
	if r != native.ErrFeatureNotPresent {
		t.Errorf("CreateDevice = %v, want feature-not-present", r)
	}
}

func TestSwapchainImageRotation(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()

	sc, r := tab.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 640, Height: 480, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 3,
	})
	if r != native.Success {
		t.Fatalf("CreateSwapchain = %v", r)
	}

	images, r := tab.GetSwapchainImages(dev, sc)
	if r != native.Success || len(images) != 3 {
		t.Fatalf("GetSwapchainImages = (%d images, %v)", len(images), r)
	}

	for want := uint32(0); want < 4; want++ {
		idx, r := tab.AcquireNextImage(dev, sc, 0, native.InvalidID)
		if r != native.Success || idx != want%3 {
			t.Errorf("acquire %d = (%d, %v), want %d", want, idx, r, want%3)
		}
	}

	tab.DestroySwapchain(dev, sc)
	if _, r := tab.GetSwapchainImages(dev, sc); r != native.ErrNotFound {
		t.Errorf("images after destroy = %v, want not-found", r)
	}
}

func TestAcquireSignalsFence(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()

	sc, _ := tab.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})

	fence := native.FenceID(77)
	if _, r := tab.AcquireNextImage(dev, sc, 0, fence); r != native.Success {
		t.Fatalf("AcquireNextImage = %v", r)
	}
	if v, r := d.Compute().CompletedValue(fence); r != native.Success || v != 1 {
		t.Errorf("fence value = (%d, %v), want (1, success)", v, r)
	}
}

func TestSubmitSignalsFences(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()
	q, _ := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 0)

	fence := native.FenceID(5)
	r := tab.QueueSubmit(q, []native.SubmitInfo{{Fence: fence}, {Fence: fence}})
	if r != native.Success {
		t.Fatalf("QueueSubmit = %v", r)
	}
	if v, _ := d.Compute().CompletedValue(fence); v != 2 {
		t.Errorf("fence value = %d, want 2", v)
	}
}

func TestPresentFeedsFrameIndex(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()
	q, _ := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 0)

	sc, _ := tab.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})

	for i := 0; i < 3; i++ {
		if r := tab.QueuePresent(q, &native.PresentInfo{Swapchain: sc}); r != native.Success {
			t.Fatalf("QueuePresent = %v", r)
		}
	}
	if got := d.Compute().FinishedFrameIndex(); got != 3 {
		t.Errorf("FinishedFrameIndex = %d, want 3", got)
	}

	if r := tab.QueuePresent(q, &native.PresentInfo{Swapchain: sc, ImageIndex: 9}); r != native.ErrInvalidRequest {
		t.Errorf("present with bad image index = %v, want invalid-request", r)
	}
}

func TestDestroyDeviceDropsQueuesAndSwapchains(t *testing.T) {
	d := initDriver(t)
	_, dev := createDevice(t, d)
	tab := d.Table()
	q, _ := tab.GetDeviceQueue(dev, native.QueueFamilyGraphics, 0)

	sc, _ := tab.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 2,
	})

	tab.DestroyDevice(dev)

	if r := tab.QueueSubmit(q, nil); r != native.ErrNotFound {
		t.Errorf("submit after destroy = %v, want not-found", r)
	}
	if _, r := tab.GetSwapchainImages(dev, sc); r != native.ErrNotFound {
		t.Errorf("swapchain after destroy = %v, want not-found", r)
	}
}

func TestCapabilitiesCoverBundledPlugins(t *testing.T) {
	caps := New().Capabilities()

	for _, ext := range []string{"VK_KHR_timeline_semaphore", "VK_KHR_push_descriptor", "VK_NV_low_latency"} {
		if !caps.SupportsDeviceExtension(ext) {
			t.Errorf("device extension %s missing", ext)
		}
	}
	for _, f := range []string{"timelineSemaphore", "descriptorIndexing", "bufferDeviceAddress"} {
		if !caps.SupportsFeature12(f) {
			t.Errorf("feature %s missing", f)
		}
	}
	if _, ok := caps.QueueFamily(native.QueueFamilyOpticalFlow); !ok {
		t.Error("optical flow family missing")
	}
}

func TestDeviceBundle(t *testing.T) {
	d := initDriver(t)
	b := d.DeviceBundle()
	if b == nil || b.Device() == nil {
		t.Fatal("device bundle incomplete")
	}
	if b.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("surface format = %v", b.SurfaceFormat())
	}
	info := b.AdapterInfo()
	if info.Type != gpucontext.AdapterTypeSoftware {
		t.Errorf("adapter type = %v, want software", info.Type)
	}
	if info.Name == "" {
		t.Error("adapter name empty")
	}
}
