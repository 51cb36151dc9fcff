package common

import (
	"testing"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/tag"
)

func startCommon(t *testing.T, opts ...Option) (*Plugin, *plugin.Host) {
	t.Helper()
	host := &plugin.Host{Hooks: hook.NewTable(), Params: param.NewRegistry()}
	m := plugin.NewManager(host)
	p := New(opts...)
	if err := m.Add(p); err != nil {
		t.Fatal(err)
	}
	if err := m.InitializePlugins(); err != nil {
		t.Fatalf("InitializePlugins: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return p, host
}

func firePresent(host *plugin.Host) {
	for _, r := range host.Hooks.After(hook.FunctionQueuePresent) {
		cb := r.Callback.(hook.QueuePresentAfter)
		cb(1, &native.PresentInfo{Swapchain: 1}, native.Success)
	}
}

func TestStartupPublishesAPIs(t *testing.T) {
	p, host := startCommon(t)

	comp, ok := param.As[compute.Interface](host.Params, param.KeyComputeAPI)
	if !ok || comp == nil {
		t.Error("compute API not published")
	}
	store, ok := param.As[*tag.Store](host.Params, param.KeyTagAPI)
	if !ok || store != p.Store() {
		t.Error("tag API not published")
	}
	if _, ok := param.As[*EvaluateRegistry](host.Params, param.KeyRegisterEvaluate); !ok {
		t.Error("evaluate registry not published")
	}
}

func TestShutdownWithdrawsAPIs(t *testing.T) {
	host := &plugin.Host{Hooks: hook.NewTable(), Params: param.NewRegistry()}
	m := plugin.NewManager(host)
	m.Add(New())
	if err := m.InitializePlugins(); err != nil {
		t.Fatal(err)
	}
	m.Shutdown()

	if _, ok := host.Params.Get(param.KeyComputeAPI); ok {
		t.Error("compute API still published after shutdown")
	}
	if _, ok := host.Params.Get(param.KeyTagAPI); ok {
		t.Error("tag API still published after shutdown")
	}
	if n := host.Hooks.Len(); n != 0 {
		t.Errorf("%d hooks left after shutdown", n)
	}
}

func TestPresentAdvancesFrameAndRecycles(t *testing.T) {
	p, host := startCommon(t)

	// Tag frames 1 and 2 as the application would.
	p.Store().SetTag(1, 0, tag.ResourceTag{
		Resource: tag.Resource{Image: 5, State: 1},
		Type:     tag.TypeDepth,
	}, 0, false)

	// Present four frames; frame 1 falls behind present-2 and recycles.
	for i := 0; i < 4; i++ {
		firePresent(host)
	}

	frame, ok := host.Params.Uint32(param.KeyPresentFrame)
	if !ok || frame != 4 {
		t.Errorf("present frame = (%d, %v), want (4, true)", frame, ok)
	}
	if _, r := p.Store().GetTag(tag.TypeDepth, 1, 0, nil, false); r != native.ErrNotFound {
		t.Errorf("frame 1 tag = %v after recycling, want not-found", r)
	}
}

func TestPresentDefersToOtherFrameWriter(t *testing.T) {
	_, host := startCommon(t)

	// A latency plugin publishes the application's own frame index.
	host.Params.Set(param.KeyPresentFrame, uint32(100))
	firePresent(host)

	frame, _ := host.Params.Uint32(param.KeyPresentFrame)
	if frame != 100 {
		t.Errorf("present frame = %d, want 100 (foreign value kept)", frame)
	}
}

func TestTrackerFedByPresent(t *testing.T) {
	p, host := startCommon(t)

	firePresent(host)
	firePresent(host)

	if got := p.Compute().FinishedFrameIndex(); got != 2 {
		t.Errorf("FinishedFrameIndex = %d, want 2", got)
	}
}

func TestCustomComputeNotTracked(t *testing.T) {
	fake := compute.NewFake()
	p, host := startCommon(t, WithCompute(fake))

	if p.Compute() != compute.Interface(fake) {
		t.Error("published compute should be the injected one")
	}
	// No tracker: the submit hook is not registered.
	if n := len(host.Hooks.Before(hook.FunctionQueueSubmit)); n != 0 {
		t.Errorf("submit hooks = %d with driver compute, want 0", n)
	}
}

func TestSubmitSignalsTrackerFences(t *testing.T) {
	p, host := startCommon(t)

	fence := native.FenceID(9)
	for _, r := range host.Hooks.Before(hook.FunctionQueueSubmit) {
		cb := r.Callback.(hook.QueueSubmitBefore)
		cb(1, []native.SubmitInfo{{Fence: fence}}, nil)
		cb(1, []native.SubmitInfo{{Fence: fence}}, nil)
	}

	v, res := p.Compute().CompletedValue(fence)
	if res != native.Success || v != 2 {
		t.Errorf("fence value = (%d, %v), want (2, success)", v, res)
	}
}

func TestWaitIdleFlushesStore(t *testing.T) {
	p, host := startCommon(t)

	p.Store().SetTag(1, 0, tag.ResourceTag{
		Resource: tag.Resource{Image: 5, State: 1},
		Type:     tag.TypeDepth,
	}, 0, false)

	for _, r := range host.Hooks.Before(hook.FunctionDeviceWaitIdle) {
		cb := r.Callback.(hook.DeviceWaitIdleBefore)
		cb(1, nil)
	}

	if p.Store().Len() != 0 {
		t.Errorf("store len = %d after wait idle, want 0", p.Store().Len())
	}
}

func TestEvaluateRegistryDispatch(t *testing.T) {
	_, host := startCommon(t)

	evals, _ := param.As[*EvaluateRegistry](host.Params, param.KeyRegisterEvaluate)

	var gotFrame uint32
	evals.Register("latency", func(cmd native.CommandBufferID, frame, viewport uint32, tags []tag.ResourceTag) native.Result {
		gotFrame = frame
		return native.Success
	})

	if r := evals.Dispatch("latency", 1, 7, 0, nil); r != native.Success {
		t.Errorf("Dispatch = %v", r)
	}
	if gotFrame != 7 {
		t.Errorf("callback frame = %d, want 7", gotFrame)
	}
	if r := evals.Dispatch("ghost", 1, 7, 0, nil); r != native.ErrNotFound {
		t.Errorf("Dispatch unknown feature = %v, want not-found", r)
	}

	evals.Register("latency", nil)
	if r := evals.Dispatch("latency", 1, 8, 0, nil); r != native.ErrNotFound {
		t.Errorf("Dispatch after unregister = %v, want not-found", r)
	}
}
