package interpose

import (
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
)

// unionStrings appends the entries of add that dst does not already
// hold.
func unionStrings(dst, add []string) []string {
	for _, s := range add {
		found := false
		for _, have := range dst {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// mergeQueueRequests folds the plugins' queue needs into the
// application's requests. An existing request for the family grows by
// the needed count; a missing family gets a new request. Plugin
// additions clamp to the family limit, application requests are left
// for the driver to judge.
func (r *Runtime) mergeQueueRequests(app []native.QueueRequest, needs []native.QueueRequest) []native.QueueRequest {
	merged := append([]native.QueueRequest(nil), app...)

	for _, need := range needs {
		idx := -1
		for i := range merged {
			if merged[i].Family == need.Family {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, native.QueueRequest{Family: need.Family, Count: need.Count})
			idx = len(merged) - 1
		} else {
			merged[idx].Count += need.Count
		}

		if props, ok := r.caps.QueueFamily(need.Family); ok && merged[idx].Count > props.MaxQueues {
			r.log.Warn("interpose: queue request clamped to family limit",
				"family", need.Family.String(),
				"requested", merged[idx].Count,
				"limit", props.MaxQueues)
			merged[idx].Count = props.MaxQueues
		}
	}
	return merged
}

// CreateInstance creates the API instance. Instance extensions the
// loaded plugins declare are added to the application's request and
// checked against the driver before the call reaches it.
func (r *Runtime) CreateInstance(info *native.InstanceCreateInfo) (native.InstanceID, native.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return native.InvalidID, native.ErrNotInitialized
	}
	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}
	if r.instance.IsValid() {
		return native.InvalidID, native.ErrInvalidState
	}

	merged := *info
	merged.Extensions = append([]string(nil), info.Extensions...)
	for _, cfg := range r.manager.PendingConfigs() {
		merged.Extensions = unionStrings(merged.Extensions, cfg.InstanceExtensions)
	}
	for _, ext := range merged.Extensions {
		if !r.caps.SupportsInstanceExtension(ext) {
			r.log.Warn("interpose: instance extension unsupported", "extension", ext)
			return native.InvalidID, native.ErrExtensionNotPresent
		}
	}

	id, res := r.table.CreateInstance(&merged)
	if res.Ok() {
		r.instance = id
		r.log.Info("interpose: instance created", "extensions", len(merged.Extensions))
	}
	return id, res
}

// DestroyInstance destroys the instance.
func (r *Runtime) DestroyInstance(instance native.InstanceID) native.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || instance != r.instance || !instance.IsValid() {
		return native.ErrNotFound
	}
	if r.device.IsValid() {
		return native.ErrInvalidState
	}
	r.table.DestroyInstance(instance)
	r.instance = native.InvalidID
	return native.Success
}

// CreateDevice creates the logical device. Device extensions, feature
// flags and queue needs from the loaded plugins fold into the
// application's request; the merged request is checked against the
// driver's capabilities before the real call.
func (r *Runtime) CreateDevice(instance native.InstanceID, info *native.DeviceCreateInfo) (native.DeviceID, native.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return native.InvalidID, native.ErrNotInitialized
	}
	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}
	if instance != r.instance || !instance.IsValid() {
		return native.InvalidID, native.ErrNotFound
	}
	if r.device.IsValid() {
		return native.InvalidID, native.ErrInvalidState
	}

	merged := *info
	merged.Extensions = append([]string(nil), info.Extensions...)
	merged.Features12 = append([]string(nil), info.Features12...)
	merged.Features13 = append([]string(nil), info.Features13...)
	merged.Queues = append([]native.QueueRequest(nil), info.Queues...)
	for _, cfg := range r.manager.PendingConfigs() {
		merged.Extensions = unionStrings(merged.Extensions, cfg.DeviceExtensions)
		merged.Features12 = unionStrings(merged.Features12, cfg.Features12)
		merged.Features13 = unionStrings(merged.Features13, cfg.Features13)
		merged.Queues = r.mergeQueueRequests(merged.Queues, cfg.QueueRequests())
	}

	for _, ext := range merged.Extensions {
		if !r.caps.SupportsDeviceExtension(ext) {
			r.log.Warn("interpose: device extension unsupported", "extension", ext)
			return native.InvalidID, native.ErrExtensionNotPresent
		}
	}
	for _, f := range merged.Features12 {
		if !r.caps.SupportsFeature12(f) {
			r.log.Warn("interpose: device feature unsupported", "feature", f)
			return native.InvalidID, native.ErrFeatureNotPresent
		}
	}
	for _, f := range merged.Features13 {
		if !r.caps.SupportsFeature13(f) {
			r.log.Warn("interpose: device feature unsupported", "feature", f)
			return native.InvalidID, native.ErrFeatureNotPresent
		}
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionCreateDevice) {
		if cb, ok := reg.Callback.(hook.CreateDeviceBefore); ok {
			if res := cb(instance, &merged, &skip); !res.Ok() {
				return native.InvalidID, res
			}
		}
	}

	var id native.DeviceID
	res := native.Success
	if !skip {
		id, res = r.table.CreateDevice(instance, &merged)
		if !res.Ok() {
			return id, res
		}
	}

	// After hooks run even when the call was skipped; a plugin that
	// substitutes its own device relies on seeing the skipped call.
	for _, reg := range r.hooks.After(hook.FunctionCreateDevice) {
		if cb, ok := reg.Callback.(hook.CreateDeviceAfter); ok {
			if hres := cb(instance, &merged, id); !hres.Ok() {
				if id.IsValid() {
					r.table.DestroyDevice(id)
				}
				return native.InvalidID, hres
			}
		}
	}
	if skip {
		return native.InvalidID, native.Success
	}

	r.device = id
	if bp, ok := r.driver.(bundleProvider); ok {
		r.params.Set(param.KeyDeviceBundle, bp.DeviceBundle())
	}
	r.log.Info("interpose: device created",
		"extensions", len(merged.Extensions),
		"queues", len(merged.Queues))
	return id, res
}

// DestroyDevice destroys the logical device.
func (r *Runtime) DestroyDevice(device native.DeviceID) native.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || device != r.device || !device.IsValid() {
		return native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionDestroyDevice) {
		if cb, ok := reg.Callback.(hook.DestroyDeviceBefore); ok {
			if res := cb(device, &skip); !res.Ok() {
				return res
			}
		}
	}
	if skip {
		return native.Success
	}

	r.params.Delete(param.KeyDeviceBundle)
	r.table.DestroyDevice(device)
	r.device = native.InvalidID
	return native.Success
}

// DeviceWaitIdle drains the device. Loaded plugins flush their
// frame-bound state here.
func (r *Runtime) DeviceWaitIdle(device native.DeviceID) native.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || device != r.device || !device.IsValid() {
		return native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionDeviceWaitIdle) {
		if cb, ok := reg.Callback.(hook.DeviceWaitIdleBefore); ok {
			if res := cb(device, &skip); !res.Ok() {
				return res
			}
		}
	}
	if skip {
		return native.Success
	}
	return r.table.DeviceWaitIdle(device)
}

// CreateSwapchain creates a swapchain. Before hooks may edit the
// request, for example to grow the image count; an after hook failure
// fails the whole call and destroys the swapchain again.
func (r *Runtime) CreateSwapchain(device native.DeviceID, info *native.SwapchainCreateInfo) (native.SwapchainID, native.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || device != r.device || !device.IsValid() {
		return native.InvalidID, native.ErrNotFound
	}
	if info == nil {
		return native.InvalidID, native.ErrMissingInput
	}

	merged := *info
	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionCreateSwapchain) {
		if cb, ok := reg.Callback.(hook.CreateSwapchainBefore); ok {
			if res := cb(device, &merged, &skip); !res.Ok() {
				return native.InvalidID, res
			}
		}
	}
	var id native.SwapchainID
	res := native.Success
	if !skip {
		id, res = r.table.CreateSwapchain(device, &merged)
		if !res.Ok() {
			return id, res
		}
	}

	// After hooks run even when the call was skipped, so a plugin can
	// stand up a virtual swapchain in place of the real one.
	for _, reg := range r.hooks.After(hook.FunctionCreateSwapchain) {
		if cb, ok := reg.Callback.(hook.CreateSwapchainAfter); ok {
			if hres := cb(device, &merged, id); !hres.Ok() {
				if id.IsValid() {
					r.table.DestroySwapchain(device, id)
				}
				return native.InvalidID, hres
			}
		}
	}
	return id, res
}

// DestroySwapchain destroys a swapchain.
func (r *Runtime) DestroySwapchain(device native.DeviceID, swapchain native.SwapchainID) native.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || device != r.device || !device.IsValid() {
		return native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionDestroySwapchain) {
		if cb, ok := reg.Callback.(hook.DestroySwapchainBefore); ok {
			if res := cb(device, swapchain, &skip); !res.Ok() {
				return res
			}
		}
	}
	if skip {
		return native.Success
	}
	r.table.DestroySwapchain(device, swapchain)
	return native.Success
}

// GetSwapchainImages returns a swapchain's images.
func (r *Runtime) GetSwapchainImages(device native.DeviceID, swapchain native.SwapchainID) ([]native.ImageID, native.Result) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || device != r.device || !device.IsValid() {
		return nil, native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionGetSwapchainImages) {
		if cb, ok := reg.Callback.(hook.GetSwapchainImagesBefore); ok {
			if res := cb(device, swapchain, &skip); !res.Ok() {
				return nil, res
			}
		}
	}
	if skip {
		return nil, native.Success
	}
	return r.table.GetSwapchainImages(device, swapchain)
}

// AcquireNextImage acquires the next swapchain image.
func (r *Runtime) AcquireNextImage(device native.DeviceID, swapchain native.SwapchainID, timeoutNanos uint64, fence native.FenceID) (uint32, native.Result) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || device != r.device || !device.IsValid() {
		return 0, native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionAcquireNextImage) {
		if cb, ok := reg.Callback.(hook.AcquireNextImageBefore); ok {
			if res := cb(device, swapchain, timeoutNanos, fence, &skip); !res.Ok() {
				return 0, res
			}
		}
	}
	if skip {
		return 0, native.Success
	}
	return r.table.AcquireNextImage(device, swapchain, timeoutNanos, fence)
}

// QueueSubmit submits command buffer batches. A before hook that sets
// skip drops the submission.
func (r *Runtime) QueueSubmit(queue native.QueueID, batches []native.SubmitInfo) native.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || !r.device.IsValid() {
		return native.ErrNotFound
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionQueueSubmit) {
		if cb, ok := reg.Callback.(hook.QueueSubmitBefore); ok {
			if res := cb(queue, batches, &skip); !res.Ok() {
				return res
			}
		}
	}
	if skip {
		return native.Success
	}
	return r.table.QueueSubmit(queue, batches)
}

// QueuePresent presents a swapchain image. After hooks always run and
// receive the real call's result, or [native.Success] when a before
// hook skipped the call.
func (r *Runtime) QueuePresent(queue native.QueueID, info *native.PresentInfo) native.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || !r.device.IsValid() {
		return native.ErrNotFound
	}
	if info == nil {
		return native.ErrMissingInput
	}

	skip := false
	for _, reg := range r.hooks.Before(hook.FunctionQueuePresent) {
		if cb, ok := reg.Callback.(hook.QueuePresentBefore); ok {
			if res := cb(queue, info, &skip); !res.Ok() {
				return res
			}
		}
	}

	res := native.Success
	if !skip {
		res = r.table.QueuePresent(queue, info)
	}

	for _, reg := range r.hooks.After(hook.FunctionQueuePresent) {
		if cb, ok := reg.Callback.(hook.QueuePresentAfter); ok {
			if hres := cb(queue, info, res); !hres.Ok() {
				return hres
			}
		}
	}
	return res
}
