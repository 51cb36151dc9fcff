// Package software implements a pure in-memory driver.
//
// The driver keeps every API object in process memory and never touches
// a GPU. It backs headless runs and tests, and it is the fallback the
// runtime selects when no hardware driver is available. Work submitted
// to it completes immediately: fences signal on submit and presents
// retire on the spot.
package software

import (
	"sync"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/native"
)

// Queue family sizes exposed by the in-memory device.
const (
	maxGraphicsQueues    = 16
	maxComputeQueues     = 8
	maxOpticalFlowQueues = 1
)

func init() {
	native.Register(native.DriverSoftware, func() native.Driver {
		return New()
	})
}

// Driver is the in-memory driver.
type Driver struct {
	mu          sync.Mutex
	initialized bool
	nextID      uint64

	instances  map[native.InstanceID]*instanceState
	devices    map[native.DeviceID]*deviceState
	queues     map[native.QueueID]queueState
	swapchains map[native.SwapchainID]*swapchainState

	tracker  *compute.Tracker
	presents uint32
}

type instanceState struct {
	extensions []string
}

type deviceState struct {
	instance native.InstanceID
	queues   map[native.QueueFamily][]native.QueueID
}

type queueState struct {
	device native.DeviceID
	family native.QueueFamily
}

type swapchainState struct {
	device native.DeviceID
	images []native.ImageID
	next   uint32
}

// New creates an uninitialized software driver.
func New() *Driver {
	return &Driver{}
}

// Name returns the registry name.
func (d *Driver) Name() string { return native.DriverSoftware }

// Init prepares the in-memory object tables.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	d.instances = make(map[native.InstanceID]*instanceState)
	d.devices = make(map[native.DeviceID]*deviceState)
	d.queues = make(map[native.QueueID]queueState)
	d.swapchains = make(map[native.SwapchainID]*swapchainState)
	d.tracker = compute.NewTracker()
	d.presents = 0
	d.initialized = true
	return nil
}

// Close drops every live object.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

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

// Capabilities describes the in-memory device. It advertises everything
// the bundled plugins require so the full stack runs without hardware.
func (d *Driver) Capabilities() native.DeviceCapabilities {
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
			{Family: native.QueueFamilyGraphics, MaxQueues: maxGraphicsQueues},
			{Family: native.QueueFamilyCompute, MaxQueues: maxComputeQueues},
			{Family: native.QueueFamilyOpticalFlow, MaxQueues: maxOpticalFlowQueues},
		},
		VendorName: "interpose",
		DeviceName: "software",
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

// allocID hands out process-unique handles. Caller holds d.mu.
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
	caps := d.Capabilities()
	for _, ext := range info.Extensions {
		if !caps.SupportsInstanceExtension(ext) {
			return native.InvalidID, native.ErrExtensionNotPresent
		}
	}

	id := native.InstanceID(d.allocID())
	d.instances[id] = &instanceState{extensions: append([]string(nil), info.Extensions...)}
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

	caps := d.Capabilities()
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

	// One request per family; counts within the family limits.
	requested := make(map[native.QueueFamily]uint32)
	for _, q := range info.Queues {
		props, ok := caps.QueueFamily(q.Family)
		if !ok {
			return native.InvalidID, native.ErrFeatureNotPresent
		}
		requested[q.Family] += q.Count
		if requested[q.Family] > props.MaxQueues {
			return native.InvalidID, native.ErrInitializationFailed
		}
	}

	id := native.DeviceID(d.allocID())
	dev := &deviceState{
		instance: instance,
		queues:   make(map[native.QueueFamily][]native.QueueID),
	}
	for family, count := range requested {
		for i := uint32(0); i < count; i++ {
			qid := native.QueueID(d.allocID())
			dev.queues[family] = append(dev.queues[family], qid)
			d.queues[qid] = queueState{device: id, family: family}
		}
	}
	d.devices[id] = dev
	return id, native.Success
}

func (d *Driver) destroyDevice(device native.DeviceID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[device]
	if !ok {
		return
	}
	for _, qs := range dev.queues {
		for _, q := range qs {
			delete(d.queues, q)
		}
	}
	for id, sc := range d.swapchains {
		if sc.device == device {
			delete(d.swapchains, id)
		}
	}
	delete(d.devices, device)
}

func (d *Driver) getDeviceQueue(device native.DeviceID, family native.QueueFamily, index uint32) (native.QueueID, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.devices[device]
	if !ok {
		return native.InvalidID, native.ErrNotFound
	}
	qs := dev.queues[family]
	if uint64(index) >= uint64(len(qs)) {
		return native.InvalidID, native.ErrNotFound
	}
	return qs[index], native.Success
}

func (d *Driver) deviceWaitIdle(device native.DeviceID) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[device]; !ok {
		return native.ErrNotFound
	}
	// Nothing is ever in flight here.
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

	if _, ok := d.queues[queue]; !ok {
		return native.ErrNotFound
	}
	// Batches retire immediately; signal each batch fence.
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
	q, ok := d.queues[queue]
	if !ok {
		return native.ErrNotFound
	}
	sc, ok := d.swapchains[info.Swapchain]
	if !ok || sc.device != q.device {
		return native.ErrNotFound
	}
	if uint64(info.ImageIndex) >= uint64(len(sc.images)) {
		return native.ErrInvalidRequest
	}
	d.presents++
	d.tracker.NotePresent(d.presents)
	return native.Success
}

var (
	_ native.Driver    = (*Driver)(nil)
	_ compute.Provider = (*Driver)(nil)
)
