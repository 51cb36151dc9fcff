package hook

import (
	"github.com/gogpu/interpose/native"
)

// FunctionID identifies a hookable API entry point.
type FunctionID uint32

const (
	// FunctionCreateDevice is logical device creation.
	FunctionCreateDevice FunctionID = iota

	// FunctionDestroyDevice is logical device destruction.
	FunctionDestroyDevice

	// FunctionDeviceWaitIdle is the full device drain.
	FunctionDeviceWaitIdle

	// FunctionCreateSwapchain is swapchain creation.
	FunctionCreateSwapchain

	// FunctionDestroySwapchain is swapchain destruction.
	FunctionDestroySwapchain

	// FunctionGetSwapchainImages is swapchain image enumeration.
	FunctionGetSwapchainImages

	// FunctionAcquireNextImage is swapchain image acquisition.
	FunctionAcquireNextImage

	// FunctionQueueSubmit is command buffer submission.
	FunctionQueueSubmit

	// FunctionQueuePresent is swapchain presentation.
	FunctionQueuePresent

	functionCount
)

// String returns the entry point name.
func (f FunctionID) String() string {
	switch f {
	case FunctionCreateDevice:
		return "CreateDevice"
	case FunctionDestroyDevice:
		return "DestroyDevice"
	case FunctionDeviceWaitIdle:
		return "DeviceWaitIdle"
	case FunctionCreateSwapchain:
		return "CreateSwapchain"
	case FunctionDestroySwapchain:
		return "DestroySwapchain"
	case FunctionGetSwapchainImages:
		return "GetSwapchainImages"
	case FunctionAcquireNextImage:
		return "AcquireNextImage"
	case FunctionQueueSubmit:
		return "QueueSubmit"
	case FunctionQueuePresent:
		return "QueuePresent"
	default:
		return "unknown"
	}
}

// Phase selects when a callback runs relative to the real API call.
type Phase uint8

const (
	// PhaseBefore callbacks run before the real call and may skip it.
	PhaseBefore Phase = iota

	// PhaseAfter callbacks run after the real call.
	PhaseAfter
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseBefore {
		return "before"
	}
	return "after"
}

// Callback is implemented by the typed callback function types in this
// package. The interface is sealed: dispatch type-switches on the
// concrete types, so arbitrary implementations would never be invoked.
type Callback interface {
	Function() FunctionID
	Phase() Phase

	sealed()
}

// CreateDeviceBefore runs before device creation. The hook may edit
// info in place; set *skip to suppress the real call.
type CreateDeviceBefore func(instance native.InstanceID, info *native.DeviceCreateInfo, skip *bool) native.Result

func (CreateDeviceBefore) Function() FunctionID { return FunctionCreateDevice }
func (CreateDeviceBefore) Phase() Phase         { return PhaseBefore }
func (CreateDeviceBefore) sealed()              {}

// CreateDeviceAfter runs after device creation with the created
// handle, or [native.InvalidID] when a before hook skipped the call.
type CreateDeviceAfter func(instance native.InstanceID, info *native.DeviceCreateInfo, device native.DeviceID) native.Result

func (CreateDeviceAfter) Function() FunctionID { return FunctionCreateDevice }
func (CreateDeviceAfter) Phase() Phase         { return PhaseAfter }
func (CreateDeviceAfter) sealed()              {}

// DestroyDeviceBefore runs before device destruction.
type DestroyDeviceBefore func(device native.DeviceID, skip *bool) native.Result

func (DestroyDeviceBefore) Function() FunctionID { return FunctionDestroyDevice }
func (DestroyDeviceBefore) Phase() Phase         { return PhaseBefore }
func (DestroyDeviceBefore) sealed()              {}

// DeviceWaitIdleBefore runs before the device drain.
type DeviceWaitIdleBefore func(device native.DeviceID, skip *bool) native.Result

func (DeviceWaitIdleBefore) Function() FunctionID { return FunctionDeviceWaitIdle }
func (DeviceWaitIdleBefore) Phase() Phase         { return PhaseBefore }
func (DeviceWaitIdleBefore) sealed()              {}

// CreateSwapchainBefore runs before swapchain creation. The hook may
// edit info in place, for example to grow the image count.
type CreateSwapchainBefore func(device native.DeviceID, info *native.SwapchainCreateInfo, skip *bool) native.Result

func (CreateSwapchainBefore) Function() FunctionID { return FunctionCreateSwapchain }
func (CreateSwapchainBefore) Phase() Phase         { return PhaseBefore }
func (CreateSwapchainBefore) sealed()              {}

// CreateSwapchainAfter runs after swapchain creation with the created
// handle, or [native.InvalidID] when a before hook skipped the call.
type CreateSwapchainAfter func(device native.DeviceID, info *native.SwapchainCreateInfo, swapchain native.SwapchainID) native.Result

func (CreateSwapchainAfter) Function() FunctionID { return FunctionCreateSwapchain }
func (CreateSwapchainAfter) Phase() Phase         { return PhaseAfter }
func (CreateSwapchainAfter) sealed()              {}

// DestroySwapchainBefore runs before swapchain destruction.
type DestroySwapchainBefore func(device native.DeviceID, swapchain native.SwapchainID, skip *bool) native.Result

func (DestroySwapchainBefore) Function() FunctionID { return FunctionDestroySwapchain }
func (DestroySwapchainBefore) Phase() Phase         { return PhaseBefore }
func (DestroySwapchainBefore) sealed()              {}

// GetSwapchainImagesBefore runs before swapchain image enumeration.
type GetSwapchainImagesBefore func(device native.DeviceID, swapchain native.SwapchainID, skip *bool) native.Result

func (GetSwapchainImagesBefore) Function() FunctionID { return FunctionGetSwapchainImages }
func (GetSwapchainImagesBefore) Phase() Phase         { return PhaseBefore }
func (GetSwapchainImagesBefore) sealed()              {}

// AcquireNextImageBefore runs before swapchain image acquisition.
type AcquireNextImageBefore func(device native.DeviceID, swapchain native.SwapchainID, timeoutNanos uint64, fence native.FenceID, skip *bool) native.Result

func (AcquireNextImageBefore) Function() FunctionID { return FunctionAcquireNextImage }
func (AcquireNextImageBefore) Phase() Phase         { return PhaseBefore }
func (AcquireNextImageBefore) sealed()              {}

// QueueSubmitBefore runs before command buffer submission.
type QueueSubmitBefore func(queue native.QueueID, batches []native.SubmitInfo, skip *bool) native.Result

func (QueueSubmitBefore) Function() FunctionID { return FunctionQueueSubmit }
func (QueueSubmitBefore) Phase() Phase         { return PhaseBefore }
func (QueueSubmitBefore) sealed()              {}

// QueuePresentBefore runs before presentation.
type QueuePresentBefore func(queue native.QueueID, info *native.PresentInfo, skip *bool) native.Result

func (QueuePresentBefore) Function() FunctionID { return FunctionQueuePresent }
func (QueuePresentBefore) Phase() Phase         { return PhaseBefore }
func (QueuePresentBefore) sealed()              {}

// QueuePresentAfter runs after presentation with the result of the real
// call, or [native.Success] when the call was skipped.
type QueuePresentAfter func(queue native.QueueID, info *native.PresentInfo, result native.Result) native.Result

func (QueuePresentAfter) Function() FunctionID { return FunctionQueuePresent }
func (QueuePresentAfter) Phase() Phase         { return PhaseAfter }
func (QueuePresentAfter) sealed()              {}
