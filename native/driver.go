package native

import "errors"

// Sentinel errors for driver management.
var (
	// ErrDriverNotAvailable indicates no driver is registered or the
	// requested driver does not exist.
	ErrDriverNotAvailable = errors.New("native: driver not available")

	// ErrDriverNotInitialized indicates the driver was used before Init.
	ErrDriverNotInitialized = errors.New("native: driver not initialized")
)

// DispatchTable holds the driver entry points the runtime forwards to
// after running registered hooks. Every field must be non-nil on a
// table returned by an initialized driver.
type DispatchTable struct {
	CreateInstance  func(info *InstanceCreateInfo) (InstanceID, Result)
	DestroyInstance func(instance InstanceID)

	CreateDevice   func(instance InstanceID, info *DeviceCreateInfo) (DeviceID, Result)
	DestroyDevice  func(device DeviceID)
	GetDeviceQueue func(device DeviceID, family QueueFamily, index uint32) (QueueID, Result)
	DeviceWaitIdle func(device DeviceID) Result

	CreateSwapchain    func(device DeviceID, info *SwapchainCreateInfo) (SwapchainID, Result)
	DestroySwapchain   func(device DeviceID, swapchain SwapchainID)
	GetSwapchainImages func(device DeviceID, swapchain SwapchainID) ([]ImageID, Result)
	AcquireNextImage   func(device DeviceID, swapchain SwapchainID, timeoutNanos uint64, fence FenceID) (uint32, Result)

	QueueSubmit  func(queue QueueID, batches []SubmitInfo) Result
	QueuePresent func(queue QueueID, info *PresentInfo) Result
}

// Complete reports whether every entry point is wired.
func (t *DispatchTable) Complete() bool {
	return t != nil &&
		t.CreateInstance != nil &&
		t.DestroyInstance != nil &&
		t.CreateDevice != nil &&
		t.DestroyDevice != nil &&
		t.GetDeviceQueue != nil &&
		t.DeviceWaitIdle != nil &&
		t.CreateSwapchain != nil &&
		t.DestroySwapchain != nil &&
		t.GetSwapchainImages != nil &&
		t.AcquireNextImage != nil &&
		t.QueueSubmit != nil &&
		t.QueuePresent != nil
}

// Driver is a concrete graphics backend the runtime dispatches to.
//
// Drivers are stateful: Init must succeed before Table or Capabilities
// are meaningful, and Close releases everything Init acquired.
type Driver interface {
	// Name returns the registry name of the driver.
	Name() string

	// Init acquires backend resources. Calling Init on an initialized
	// driver is a no-op.
	Init() error

	// Close releases backend resources.
	Close()

	// Table returns the driver entry points. The returned table must be
	// complete once Init has succeeded.
	Table() *DispatchTable

	// Capabilities describes the device the driver will create.
	Capabilities() DeviceCapabilities
}
