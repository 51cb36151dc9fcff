package native

import (
	"github.com/gogpu/gputypes"
)

// InvalidID is the zero handle value. No valid API object ever has it.
const InvalidID = 0

// InstanceID identifies an API instance.
type InstanceID uint64

// DeviceID identifies a logical device.
type DeviceID uint64

// QueueID identifies a device queue.
type QueueID uint64

// SwapchainID identifies a swapchain.
type SwapchainID uint64

// ImageID identifies an image resource.
type ImageID uint64

// FenceID identifies a synchronization fence.
type FenceID uint64

// CommandBufferID identifies a recorded command buffer.
type CommandBufferID uint64

// IsValid reports whether the handle refers to an object.
func (id InstanceID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id DeviceID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id QueueID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id SwapchainID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id ImageID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id FenceID) IsValid() bool { return id != InvalidID }

// IsValid reports whether the handle refers to an object.
func (id CommandBufferID) IsValid() bool { return id != InvalidID }

// QueueFamily classifies the workloads a queue accepts.
type QueueFamily uint32

const (
	// QueueFamilyGraphics queues accept graphics and transfer work.
	QueueFamilyGraphics QueueFamily = iota

	// QueueFamilyCompute queues accept compute and transfer work.
	QueueFamilyCompute

	// QueueFamilyOpticalFlow queues accept optical flow estimation work.
	QueueFamilyOpticalFlow
)

// String returns the family name.
func (f QueueFamily) String() string {
	switch f {
	case QueueFamilyGraphics:
		return "graphics"
	case QueueFamilyCompute:
		return "compute"
	case QueueFamilyOpticalFlow:
		return "optical-flow"
	default:
		return "unknown"
	}
}

// QueueRequest asks for queues from a single family at device creation.
type QueueRequest struct {
	// Family is the queue family to allocate from.
	Family QueueFamily

	// Count is the number of queues requested.
	Count uint32

	// Priorities holds one scheduling priority per queue in [0, 1].
	// May be shorter than Count; missing entries default to 1.0.
	Priorities []float32
}

// QueueFamilyProperties describes a queue family exposed by a driver.
type QueueFamilyProperties struct {
	// Family is the family being described.
	Family QueueFamily

	// MaxQueues is the number of queues the family can provide.
	MaxQueues uint32
}

// ApplicationInfo identifies the host application at instance creation.
type ApplicationInfo struct {
	// AppName is the application name, for diagnostics only.
	AppName string

	// EngineName is the engine name, for diagnostics only.
	EngineName string

	// APIVersion is the API version the application targets.
	APIVersion uint32
}

// InstanceCreateInfo describes an instance to create.
type InstanceCreateInfo struct {
	// App identifies the application.
	App ApplicationInfo

	// Extensions lists instance extensions the application requires.
	Extensions []string
}

// DeviceCreateInfo describes a logical device to create.
type DeviceCreateInfo struct {
	// Extensions lists device extensions the application requires.
	Extensions []string

	// Features12 names the 1.2-level feature flags to enable.
	Features12 []string

	// Features13 names the 1.3-level feature flags to enable.
	Features13 []string

	// Queues lists the queues to allocate.
	Queues []QueueRequest
}

// SwapchainCreateInfo describes a swapchain to create.
type SwapchainCreateInfo struct {
	// Extent is the swapchain image size. DepthOrArrayLayers is 1.
	Extent gputypes.Extent3D

	// Format is the swapchain image format.
	Format gputypes.TextureFormat

	// ImageCount is the number of images in the swapchain.
	ImageCount uint32

	// VSync selects a synchronized present mode when true.
	VSync bool
}

// SubmitInfo describes one batch of work for QueueSubmit.
type SubmitInfo struct {
	// CommandBuffers lists the buffers to execute, in order.
	CommandBuffers []CommandBufferID

	// Fence, if valid, is signaled when the batch completes.
	Fence FenceID
}

// PresentInfo describes a presentation request for QueuePresent.
type PresentInfo struct {
	// Swapchain is the swapchain to present from.
	Swapchain SwapchainID

	// ImageIndex is the swapchain image to present.
	ImageIndex uint32

	// WaitFences lists fences that must signal before the present.
	WaitFences []FenceID
}

// DeviceCapabilities describes what a driver's device supports.
// The runtime checks aggregated requirements against it before
// forwarding device creation to the driver.
type DeviceCapabilities struct {
	// InstanceExtensions lists supported instance extensions.
	InstanceExtensions []string

	// DeviceExtensions lists supported device extensions.
	DeviceExtensions []string

	// Features12 names the supported 1.2-level feature flags.
	Features12 []string

	// Features13 names the supported 1.3-level feature flags.
	Features13 []string

	// QueueFamilies lists the queue families the device exposes.
	QueueFamilies []QueueFamilyProperties

	// VendorName is the device vendor, for diagnostics.
	VendorName string

	// DeviceName is the device name, for diagnostics.
	DeviceName string
}

// SupportsDeviceExtension reports whether ext is in DeviceExtensions.
func (c *DeviceCapabilities) SupportsDeviceExtension(ext string) bool {
	for _, e := range c.DeviceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SupportsInstanceExtension reports whether ext is in InstanceExtensions.
func (c *DeviceCapabilities) SupportsInstanceExtension(ext string) bool {
	for _, e := range c.InstanceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SupportsFeature12 reports whether name is in Features12.
func (c *DeviceCapabilities) SupportsFeature12(name string) bool {
	for _, f := range c.Features12 {
		if f == name {
			return true
		}
	}
	return false
}

// SupportsFeature13 reports whether name is in Features13.
func (c *DeviceCapabilities) SupportsFeature13(name string) bool {
	for _, f := range c.Features13 {
		if f == name {
			return true
		}
	}
	return false
}

// QueueFamily returns the properties for the given family.
func (c *DeviceCapabilities) QueueFamily(f QueueFamily) (QueueFamilyProperties, bool) {
	for _, q := range c.QueueFamilies {
		if q.Family == f {
			return q, true
		}
	}
	return QueueFamilyProperties{}, false
}
