package latency

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/feature/common"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/shared"
)

// startLatency runs common + latency against a fake compute backend.
func startLatency(t *testing.T, fake *compute.Fake, opts ...Option) (*Plugin, *plugin.Host) {
	t.Helper()
	host := &plugin.Host{Hooks: hook.NewTable(), Params: param.NewRegistry()}
	m := plugin.NewManager(host)
	if err := m.Add(common.New(common.WithCompute(fake))); err != nil {
		t.Fatal(err)
	}
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

func TestStartupRequiresCompute(t *testing.T) {
	host := &plugin.Host{Hooks: hook.NewTable(), Params: param.NewRegistry()}
	p := New()
	err := p.Startup(host)
	if !errors.Is(err, ErrComputeUnavailable) {
		t.Errorf("Startup without common = %v, want ErrComputeUnavailable", err)
	}
}

func TestPresentStartMarkerPublishesFrames(t *testing.T) {
	fake := compute.NewFake()
	fake.Finished = 7
	p, host := startLatency(t, fake)

	if r := p.SetMarker(compute.MarkerPresentStart, 10); r != native.Success {
		t.Fatalf("SetMarker = %v", r)
	}

	if f, _ := host.Params.Uint32(param.KeyPresentFrame); f != 10 {
		t.Errorf("present frame = %d, want 10", f)
	}
	if f, _ := host.Params.Uint32(param.KeyCurrentFrame); f != 8 {
		t.Errorf("current frame = %d, want finished+1 = 8", f)
	}
	if fake.MarkerCount(compute.MarkerPresentStart) != 1 {
		t.Error("present-start not forwarded to backend")
	}
}

func TestRenderSubmitWaitsCameraFence(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	fence := native.FenceID(5)
	p.SetCameraDataFence(fence)
	fake.FenceValues[fence] = 3

	// Camera data for frame 9 not signaled yet: wait is issued.
	p.SetMarker(compute.MarkerRenderSubmitStart, 9)
	if len(fake.Waits) != 1 || fake.Waits[0].Value != 9 {
		t.Fatalf("waits = %+v, want one wait to 9", fake.Waits)
	}

	// Frame already signaled: no wait.
	fake.FenceValues[fence] = 20
	p.SetMarker(compute.MarkerRenderSubmitStart, 10)
	if len(fake.Waits) != 1 {
		t.Errorf("waits = %d after signaled fence, want still 1", len(fake.Waits))
	}
}

func TestLatencyPingNotForwarded(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	if r := p.SetMarker(compute.MarkerLatencyPing, 3); r != native.Success {
		t.Fatalf("SetMarker = %v", r)
	}
	if fake.MarkerCount(compute.MarkerLatencyPing) != 0 {
		t.Error("latency ping should not reach the backend")
	}
}

func TestTriggerFlashNeedsDriverControl(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	p.SetMarker(compute.MarkerTriggerFlash, 3)
	if fake.MarkerCount(compute.MarkerTriggerFlash) != 0 {
		t.Error("trigger-flash forwarded without driver control")
	}

	fake.FlashControlled = true
	p.SetMarker(compute.MarkerTriggerFlash, 4)
	if fake.MarkerCount(compute.MarkerTriggerFlash) != 1 {
		t.Error("trigger-flash dropped despite driver control")
	}
}

func TestSetOptionsMapsToSleepMode(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	p.SetOptions(Options{Mode: ModeLowLatencyBoost, FrameLimitMicros: 8333, UseMarkersToOptimize: true})

	if !fake.Mode.LowLatencyMode || !fake.Mode.LowLatencyBoost {
		t.Errorf("mode = %+v, want low latency with boost", fake.Mode)
	}
	if fake.Mode.MinIntervalMicros != 8333 {
		t.Errorf("interval = %d, want 8333", fake.Mode.MinIntervalMicros)
	}

	p.SetOptions(Options{Mode: ModeOff})
	if fake.Mode.LowLatencyMode {
		t.Error("mode off should clear low latency")
	}
}

func TestSleepForwarded(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	p.Sleep(12)
	if len(fake.SleepCalls) != 1 || fake.SleepCalls[0] != 12 {
		t.Errorf("sleep calls = %v, want [12]", fake.SleepCalls)
	}
}

func TestCameraDataRoundTrip(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	want := CameraData{Position: [3]float32{1, 2, 3}}
	p.SetCameraData(8, want)

	got, ok := p.GetCameraData(8)
	if !ok {
		t.Fatal("camera data missing")
	}
	if got.Position != want.Position {
		t.Errorf("position = %v, want %v", got.Position, want.Position)
	}
}

func TestCameraDataEarlyFrameFailsFast(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake)

	start := time.Now()
	if _, ok := p.GetCameraData(3); ok {
		t.Error("frame 3 data should be absent")
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("early frame lookup blocked %v, want immediate", d)
	}
}

func TestCameraDataLateFrameWaits(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake, WithTimeoutPolicy(func(frame uint32) time.Duration {
		if frame < 5 {
			return 0
		}
		return 100 * time.Millisecond
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.SetCameraData(10, CameraData{Position: [3]float32{9, 9, 9}})
	}()

	start := time.Now()
	got, ok := p.GetCameraData(10)
	if !ok {
		t.Fatal("camera data should arrive within the timeout")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("lookup returned before the producer inserted")
	}
	if got.Position[0] != 9 {
		t.Errorf("position = %v", got.Position)
	}
}

func TestCameraDataTimeout(t *testing.T) {
	fake := compute.NewFake()
	p, _ := startLatency(t, fake, WithTimeoutPolicy(func(uint32) time.Duration {
		return 30 * time.Millisecond
	}))

	start := time.Now()
	if _, ok := p.GetCameraData(10); ok {
		t.Error("absent data should time out")
	}
	if d := time.Since(start); d < 25*time.Millisecond || d > 500*time.Millisecond {
		t.Errorf("timeout took %v, want about 30ms", d)
	}
}

func TestSharedDataNegotiation(t *testing.T) {
	fake := compute.NewFake()
	_, host := startLatency(t, fake)

	// A consumer newer than the provider: clamped to v3, all fields.
	req := &SharedData{Header: shared.Header{Type: SharedDataType, Version: 5}}
	if s := shared.Fetch(host.Params, PluginName, req); s != shared.StatusOk {
		t.Fatalf("Fetch = %v", s)
	}
	if req.Header.Version != SharedDataVersion {
		t.Errorf("version = %d, want %d", req.Header.Version, SharedDataVersion)
	}
	if req.SetMarker == nil || req.GetCameraData == nil || req.SetCameraDataFence == nil {
		t.Error("v3 request should have all functions")
	}

	// A v1 consumer gets only the v1 surface.
	req = &SharedData{Header: shared.Header{Type: SharedDataType, Version: 1}}
	if s := shared.Fetch(host.Params, PluginName, req); s != shared.StatusOk {
		t.Fatalf("Fetch v1 = %v", s)
	}
	if req.SetMarker == nil {
		t.Error("v1 request missing SetMarker")
	}
	if req.GetCameraData != nil || req.SetCameraDataFence != nil {
		t.Error("v1 request should not have newer fields")
	}

	// Wrong type is rejected.
	bad := &SharedData{Header: shared.Header{Type: "other", Version: 1}}
	if s := shared.Fetch(host.Params, PluginName, bad); s != shared.StatusInvalidRequest {
		t.Errorf("Fetch wrong type = %v, want invalid-request", s)
	}
}

func TestSharedDataMarkerPath(t *testing.T) {
	fake := compute.NewFake()
	_, host := startLatency(t, fake)

	req := NewSharedDataRequest()
	if s := shared.Fetch(host.Params, PluginName, req); s != shared.StatusOk {
		t.Fatalf("Fetch = %v", s)
	}
	req.SetMarker(compute.MarkerSimulationStart, 4)
	if fake.MarkerCount(compute.MarkerSimulationStart) != 1 {
		t.Error("marker through shared data not forwarded")
	}
}

func TestPresentHooksSynthesizeMarkers(t *testing.T) {
	fake := compute.NewFake()
	_, host := startLatency(t, fake)

	fire := func() {
		for _, r := range host.Hooks.Before(hook.FunctionQueuePresent) {
			if cb, ok := r.Callback.(hook.QueuePresentBefore); ok {
				cb(1, nil, nil)
			}
		}
		for _, r := range host.Hooks.After(hook.FunctionQueuePresent) {
			if cb, ok := r.Callback.(hook.QueuePresentAfter); ok {
				cb(1, nil, native.Success)
			}
		}
	}

	fire()
	fire()

	if n := fake.MarkerCount(compute.MarkerPresentStart); n != 2 {
		t.Errorf("synthesized present-start = %d, want 2", n)
	}
	if n := fake.MarkerCount(compute.MarkerPresentEnd); n != 2 {
		t.Errorf("synthesized present-end = %d, want 2", n)
	}
}

func TestAppMarkersDisableSynthesis(t *testing.T) {
	fake := compute.NewFake()
	p, host := startLatency(t, fake)

	// The application drives its own present markers.
	p.SetMarker(compute.MarkerPresentStart, 1)

	for _, r := range host.Hooks.Before(hook.FunctionQueuePresent) {
		if cb, ok := r.Callback.(hook.QueuePresentBefore); ok {
			cb(1, nil, nil)
		}
	}

	if n := fake.MarkerCount(compute.MarkerPresentStart); n != 1 {
		t.Errorf("present-start markers = %d, want only the app's 1", n)
	}
}

func TestStateWrapsBackend(t *testing.T) {
	fake := compute.NewFake()
	fake.FlashControlled = true
	p, _ := startLatency(t, fake)

	s := p.State()
	if !s.LowLatencyAvailable || !s.FlashIndicatorDriverControlled {
		t.Errorf("state = %+v", s)
	}
}
