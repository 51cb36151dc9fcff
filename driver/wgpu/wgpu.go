//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/native"
)

// ErrNoGPU indicates no compatible GPU adapter was found.
var ErrNoGPU = errors.New("wgpu: no compatible GPU adapter found")

func init() {
	native.Register(native.DriverWGPU, func() native.Driver {
		return New()
	})
}

// Driver is the gogpu/wgpu-backed driver.
//
// wgpu exposes a single logical device per adapter, so every native
// device handle the driver hands out maps to the one core device.
// Timeline fences and frame pacing run on a software tracker; wgpu has
// no timeline fence primitive to forward them to.
type Driver struct {
	mu          sync.Mutex
	initialized bool

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	vendorName  string
	deviceName  string
	adapterType gputypes.DeviceType
	maxExtent   uint32

	nextID     uint64
	instances  map[native.InstanceID]struct{}
	devices    map[native.DeviceID]map[native.QueueFamily]native.QueueID
	queues     map[native.QueueID]native.DeviceID
	swapchains map[native.SwapchainID]*swapchainState

	tracker *compute.Tracker
}

type swapchainState struct {
	device native.DeviceID
	images []native.ImageID
	next   uint32
}

// New creates an uninitialized wgpu driver.
func New() *Driver {
	return &Driver{}
}

// Name returns the registry name.
func (d *Driver) Name() string { return native.DriverWGPU }

// Init creates the wgpu instance, adapter, device and queue.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	d.instance = core.NewInstance(&gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
		Flags:    0,
	})

	adapterID, err := d.instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	d.adapter = adapterID

	if info, err := core.GetAdapterInfo(adapterID); err == nil {
		d.vendorName = info.Vendor
		d.deviceName = info.Name
		d.adapterType = info.DeviceType
	}

	deviceID, err := core.RequestDevice(adapterID, &gputypes.DeviceDescriptor{
		Label:            "interpose-device",
		RequiredFeatures: nil,
		RequiredLimits:   gputypes.DefaultLimits(),
	})
	if err != nil {
		_ = core.AdapterDrop(adapterID)
		d.adapter = core.AdapterID{}
		return fmt.Errorf("wgpu: device creation failed: %w", err)
	}
	d.device = deviceID

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		_ = core.DeviceDrop(deviceID)
		_ = core.AdapterDrop(adapterID)
		d.device = core.DeviceID{}
		d.adapter = core.AdapterID{}
		return fmt.Errorf("wgpu: queue retrieval failed: %w", err)
	}
	d.queue = queueID

	if limits, err := core.GetDeviceLimits(deviceID); err == nil {
		d.maxExtent = limits.MaxTextureDimension2D
	}

	d.instances = make(map[native.InstanceID]struct{})
	d.devices = make(map[native.DeviceID]map[native.QueueFamily]native.QueueID)
	d.queues = make(map[native.QueueID]native.DeviceID)
	d.swapchains = make(map[native.SwapchainID]*swapchainState)
	d.tracker = compute.NewTracker()
	d.initialized = true
	return nil
}

// Close releases the wgpu device and adapter.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.device.IsZero() {
		_ = core.DeviceDrop(d.device)
		d.device = core.DeviceID{}
	}
	if !d.adapter.IsZero() {
		_ = core.AdapterDrop(d.adapter)
		d.adapter = core.AdapterID{}
	}
	d.instance = nil
	d.queue = core.QueueID{}
	d.instances = nil
	d.devices = nil
	d.queues = nil
	d.swapchains = nil
	d.tracker = nil
	d.initialized = false
}

// Compute returns the driver's frame pacing implementation.
func (d *Driver) Compute() compute.Interface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracker
}

// Capabilities describes the wgpu device.
//
// Timeline semaphores and low latency markers are served by the
// driver's software tracker, so the matching extensions are advertised
// regardless of what the underlying adapter exposes.
func (d *Driver) Capabilities() native.DeviceCapabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capsLocked()
}

// capsLocked builds the capability set. Callers hold d.mu.
func (d *Driver) capsLocked() native.DeviceCapabilities {
	return native.DeviceCapabilities{
		InstanceExtensions: []string{
			"VK_KHR_surface",
			"VK_KHR_get_physical_device_properties2",
		},
		DeviceExtensions: []string{
			"VK_KHR_swapchain",
			"VK_KHR_timeline_semaphore",
			"VK_KHR_push_descriptor",
			"VK_NV_low_latency",
		},
		Features12: []string{
			"timelineSemaphore",
			"descriptorIndexing",
			"bufferDeviceAddress",
		},
		Features13: []string{
			"synchronization2",
			"dynamicRendering",
		},
		QueueFamilies: []native.QueueFamilyProperties{
			{Family: native.QueueFamilyGraphics, MaxQueues: 1},
			{Family: native.QueueFamilyCompute, MaxQueues: 1},
		},
		VendorName: d.vendorName,
		DeviceName: d.deviceName,
	}
}

// Table returns the driver entry points.
func (d *Driver) Table() *native.DispatchTable {
	return &native.DispatchTable{
		CreateInstance:     d.createInstance,
		DestroyInstance:    d.destroyInstance,
		CreateDevice:       d.createDevice,
		DestroyDevice:      d.destroyDevice,
		GetDeviceQueue:     d.getDeviceQueue,
		DeviceWaitIdle:     d.deviceWaitIdle,
		CreateSwapchain:    d.createSwapchain,
		DestroySwapchain:   d.destroySwapchain,
		GetSwapchainImages: d.getSwapchainImages,
		AcquireNextImage:   d.acquireNextImage,
		QueueSubmit:        d.queueSubmit,
		QueuePresent:       d.queuePresent,
	}
}

func (d *Driver) allocID() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Driver) createInstance(info *native.InstanceCreateInfo) (native.InstanceID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return native.InvalidID, native.ErrNotInitialized
	}
	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}
	caps := d.capsLocked()
	for _, ext := range info.Extensions {
		if !caps.SupportsInstanceExtension(ext) {
			return native.InvalidID, native.ErrExtensionNotPresent
		}
	}

	id := native.InstanceID(d.allocID())
	d.instances[id] = struct{}{}
	return id, native.Success
}

func (d *Driver) destroyInstance(instance native.InstanceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.instances, instance)
}

func (d *Driver) createDevice(instance native.InstanceID, info *native.DeviceCreateInfo) (native.DeviceID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return native.InvalidID, native.ErrNotInitialized
	}
	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}
	if _, ok := d.instances[instance]; !ok {
		return native.InvalidID, native.ErrNotFound
	}

	caps := d.capsLocked()
	for _, ext := range info.Extensions {
		if !caps.SupportsDeviceExtension(ext) {
			return native.InvalidID, native.ErrExtensionNotPresent
		}
	}
	for _, f := range info.Features12 {
		if !caps.SupportsFeature12(f) {
			return native.InvalidID, native.ErrFeatureNotPresent
		}
	}
	for _, f := range info.Features13 {
		if !caps.SupportsFeature13(f) {
			return native.InvalidID, native.ErrFeatureNotPresent
		}
	}
	for _, q := range info.Queues {
		props, ok := caps.QueueFamily(q.Family)
		if !ok || q.Count > props.MaxQueues {
			return native.InvalidID, native.ErrInitializationFailed
		}
	}

	// Every family is served by the one core queue; each still gets its
	// own handle so callers can tell their queues apart.
	id := native.DeviceID(d.allocID())
	families := make(map[native.QueueFamily]native.QueueID)
	for _, q := range info.Queues {
		if _, ok := families[q.Family]; ok {
			continue
		}
		qid := native.QueueID(d.allocID())
		families[q.Family] = qid
		d.queues[qid] = id
	}
	d.devices[id] = families
	return id, native.Success
}

func (d *Driver) destroyDevice(device native.DeviceID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[device]; !ok {
		return
	}
	for q, dev := range d.queues {
		if dev == device {
			delete(d.queues, q)
		}
	}
	for id, sc := range d.swapchains {
		if sc.device == device {
			delete(d.swapchains, id)
		}
	}
	delete(d.devices, device)
	// The core device stays alive for other native device handles.
}

func (d *Driver) getDeviceQueue(device native.DeviceID, family native.QueueFamily, index uint32) (native.QueueID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	families, ok := d.devices[device]
	if !ok {
		return native.InvalidID, native.ErrNotFound
	}
	if index != 0 {
		return native.InvalidID, native.ErrNotFound
	}
	qid, ok := families[family]
	if !ok {
		return native.InvalidID, native.ErrNotFound
	}
	return qid, native.Success
}

func (d *Driver) deviceWaitIdle(device native.DeviceID) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[device]; !ok {
		return native.ErrNotFound
	}
	return native.Success
}

func (d *Driver) createSwapchain(device native.DeviceID, info *native.SwapchainCreateInfo) (native.SwapchainID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}
	if _, ok := d.devices[device]; !ok {
		return native.InvalidID, native.ErrNotFound
	}
	if info.ImageCount == 0 || info.Extent.Width == 0 || info.Extent.Height == 0 {
		return native.InvalidID, native.ErrInvalidRequest
	}
	if d.maxExtent > 0 && (info.Extent.Width > d.maxExtent || info.Extent.Height > d.maxExtent) {
		return native.InvalidID, native.ErrInvalidRequest
	}

	id := native.SwapchainID(d.allocID())
	sc := &swapchainState{device: device}
	for i := uint32(0); i < info.ImageCount; i++ {
		sc.images = append(sc.images, native.ImageID(d.allocID()))
	}
	d.swapchains[id] = sc
	return id, native.Success
}

func (d *Driver) destroySwapchain(device native.DeviceID, swapchain native.SwapchainID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sc, ok := d.swapchains[swapchain]; ok && sc.device == device {
		delete(d.swapchains, swapchain)
	}
}

func (d *Driver) getSwapchainImages(device native.DeviceID, swapchain native.SwapchainID) ([]native.ImageID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sc, ok := d.swapchains[swapchain]
	if !ok || sc.device != device {
		return nil, native.ErrNotFound
	}
	return append([]native.ImageID(nil), sc.images...), native.Success
}

func (d *Driver) acquireNextImage(device native.DeviceID, swapchain native.SwapchainID, timeoutNanos uint64, fence native.FenceID) (uint32, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sc, ok := d.swapchains[swapchain]
	if !ok || sc.device != device {
		return 0, native.ErrNotFound
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	if fence.IsValid() {
		v, _ := d.tracker.CompletedValue(fence)
		d.tracker.SignalFence(fence, v+1)
	}
	return idx, native.Success
}

func (d *Driver) queueSubmit(queue native.QueueID, batches []native.SubmitInfo) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return native.ErrNotInitialized
	}
	for _, b := range batches {
		if b.Fence.IsValid() {
			v, _ := d.tracker.CompletedValue(b.Fence)
			d.tracker.SignalFence(b.Fence, v+1)
		}
	}
	return native.Success
}

func (d *Driver) queuePresent(queue native.QueueID, info *native.PresentInfo) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info == nil {
		return native.ErrMissingInput
	}
	sc, ok := d.swapchains[info.Swapchain]
	if !ok {
		return native.ErrNotFound
	}
	if uint64(info.ImageIndex) >= uint64(len(sc.images)) {
		return native.ErrInvalidRequest
	}
	d.tracker.NotePresent(d.tracker.FinishedFrameIndex() + 1)
	return native.Success
}

var (
	_ native.Driver    = (*Driver)(nil)
	_ compute.Provider = (*Driver)(nil)
)
