package tag

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/interpose/native"
)

// Type classifies what a tagged resource holds.
type Type uint32

const (
	// TypeDepth is the scene depth buffer.
	TypeDepth Type = iota

	// TypeMotionVectors is the motion vector buffer.
	TypeMotionVectors

	// TypeHUDLessColor is the color buffer before UI composition.
	TypeHUDLessColor

	// TypeUIColorAlpha is the UI layer with alpha.
	TypeUIColorAlpha

	// TypeScalingInputColor is the color input to upscaling.
	TypeScalingInputColor

	// TypeScalingOutputColor is the color output of upscaling.
	TypeScalingOutputColor

	// TypeExposure is the exposure texture.
	TypeExposure

	// TypeBackbuffer is the final swapchain image.
	TypeBackbuffer
)

// String returns the tag type name.
func (t Type) String() string {
	switch t {
	case TypeDepth:
		return "depth"
	case TypeMotionVectors:
		return "motion-vectors"
	case TypeHUDLessColor:
		return "hudless-color"
	case TypeUIColorAlpha:
		return "ui-color-alpha"
	case TypeScalingInputColor:
		return "scaling-input-color"
	case TypeScalingOutputColor:
		return "scaling-output-color"
	case TypeExposure:
		return "exposure"
	case TypeBackbuffer:
		return "backbuffer"
	default:
		return "unknown"
	}
}

// IsOutput reports whether the type is written by a feature rather than
// read. Output tags are never cloned: features must write into the
// application's own resource.
func (t Type) IsOutput() bool {
	return t == TypeScalingOutputColor || t == TypeBackbuffer
}

// Lifecycle declares how long a tagged resource stays valid.
type Lifecycle uint32

const (
	// LifecycleFrameOnly means the resource is valid only while the
	// tagging call runs.
	LifecycleFrameOnly Lifecycle = iota

	// LifecycleUntilPresent means the resource stays valid until the
	// frame is presented.
	LifecycleUntilPresent

	// LifecycleUntilEvaluate means the resource stays valid until the
	// feature evaluates this frame.
	LifecycleUntilEvaluate
)

// String returns the lifecycle name.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleFrameOnly:
		return "frame-only"
	case LifecycleUntilPresent:
		return "until-present"
	case LifecycleUntilEvaluate:
		return "until-evaluate"
	default:
		return "unknown"
	}
}

// Resource is a tagged GPU resource handle with its layout state.
type Resource struct {
	// Image is the underlying image handle.
	Image native.ImageID

	// State is the native layout state the resource is in.
	State uint32
}

// IsValid reports whether the resource refers to an image.
func (r Resource) IsValid() bool { return r.Image.IsValid() }

// PrecisionInfo describes how encoded values in a buffer map to real
// values.
type PrecisionInfo struct {
	// Scale multiplies the stored value.
	Scale float32

	// Bias is added after scaling.
	Bias float32
}

// ResourceTag is one tag as supplied by the application, either through
// the tagging entry point or inline with an evaluate call.
type ResourceTag struct {
	// Resource is the tagged resource.
	Resource Resource

	// Type classifies the buffer.
	Type Type

	// Lifecycle declares validity duration.
	Lifecycle Lifecycle

	// Extent is the region of interest. DepthOrArrayLayers is 1.
	Extent gputypes.Extent3D

	// Precision optionally describes value encoding.
	Precision *PrecisionInfo
}

// CommonResource is a stored tag as features consume it.
type CommonResource struct {
	// Resource is the application's resource, or zero when the store
	// holds a clone instead.
	Resource Resource

	// Clone is the store-owned copy for volatile tags, or zero.
	Clone native.ImageID

	// Extent is the region of interest.
	Extent gputypes.Extent3D

	// Precision describes value encoding. Zero value when not provided.
	Precision PrecisionInfo

	// Local marks a tag private to the plugin that set it.
	Local bool
}

// Image returns the image the consumer should read: the clone when one
// was made, otherwise the application's resource.
func (c CommonResource) Image() native.ImageID {
	if c.Clone.IsValid() {
		return c.Clone
	}
	return c.Resource.Image
}

// IsValid reports whether the tag holds any resource.
func (c CommonResource) IsValid() bool {
	return c.Resource.IsValid() || c.Clone.IsValid()
}

// Cloner copies volatile resources so they outlive the tagging call.
// Implementations typically allocate from a pool keyed by the source
// description and schedule a GPU copy on the given command buffer.
type Cloner interface {
	// Clone schedules a copy of res and returns the copy's handle.
	Clone(cmd native.CommandBufferID, res Resource) (native.ImageID, error)

	// Recycle returns a clone to the pool.
	Recycle(img native.ImageID)
}
