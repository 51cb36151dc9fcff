// Command interpose-demo runs the interposition runtime headless.
//
// It creates an instance, device and swapchain through the runtime,
// tags a fake depth resource each frame, submits and presents, then
// prints the latency report collected by the bundled plugins.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/interpose"
	_ "github.com/gogpu/interpose/driver/software"
	_ "github.com/gogpu/interpose/driver/wgpu"
	"github.com/gogpu/interpose/feature/latency"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/tag"
)

func main() {
	var (
		driver  = flag.String("driver", "", "driver to use (default: best available)")
		frames  = flag.Int("frames", 60, "number of frames to run")
		width   = flag.Int("width", 1280, "swapchain width")
		height  = flag.Int("height", 720, "swapchain height")
		verbose = flag.Bool("v", false, "enable info logging")
	)
	flag.Parse()

	if *verbose {
		interpose.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	lat := latency.New()
	opts := []interpose.Option{
		interpose.WithPlugin(lat),
	}
	if *driver != "" {
		opts = append(opts, interpose.WithDriver(*driver))
	}

	rt, err := interpose.New(opts...)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	defer rt.Close()

	log.Printf("driver: %s", rt.Driver().Name())

	inst, res := rt.CreateInstance(&native.InstanceCreateInfo{
		App: native.ApplicationInfo{AppName: "interpose-demo"},
	})
	if !res.Ok() {
		log.Fatalf("create instance: %v", res)
	}
	dev, res := rt.CreateDevice(inst, &native.DeviceCreateInfo{
		Extensions: []string{"VK_KHR_swapchain"},
		Queues:     []native.QueueRequest{{Family: native.QueueFamilyGraphics, Count: 1}},
	})
	if !res.Ok() {
		log.Fatalf("create device: %v", res)
	}

	queue, res := rt.Driver().Table().GetDeviceQueue(dev, native.QueueFamilyGraphics, 0)
	if !res.Ok() {
		log.Fatalf("get queue: %v", res)
	}

	sc, res := rt.CreateSwapchain(dev, &native.SwapchainCreateInfo{
		Extent:     gputypes.Extent3D{Width: uint32(*width), Height: uint32(*height), DepthOrArrayLayers: 1},
		Format:     gputypes.TextureFormatBGRA8Unorm,
		ImageCount: 3,
	})
	if !res.Ok() {
		log.Fatalf("create swapchain: %v", res)
	}

	for i := 0; i < *frames; i++ {
		token := rt.NewFrameToken(nil)

		rt.SetTag(token, 0, tag.ResourceTag{
			Resource:  tag.Resource{Image: native.ImageID(1000 + token.Index()), State: 1},
			Type:      tag.TypeDepth,
			Lifecycle: tag.LifecycleUntilPresent,
		}, 0, false)

		if _, res := rt.AcquireNextImage(dev, sc, 0, native.InvalidID); !res.Ok() {
			log.Fatalf("acquire: %v", res)
		}
		if res := rt.QueueSubmit(queue, []native.SubmitInfo{{Fence: 1}}); !res.Ok() {
			log.Fatalf("submit: %v", res)
		}
		if res := rt.QueuePresent(queue, &native.PresentInfo{Swapchain: sc}); !res.Ok() {
			log.Fatalf("present: %v", res)
		}
	}

	rt.DeviceWaitIdle(dev)
	rt.DestroySwapchain(dev, sc)
	rt.DestroyDevice(dev)
	rt.DestroyInstance(inst)

	fmt.Printf("presented %d frames at %dx%d\n", *frames, *width, *height)
	fmt.Printf("latency report: %d frames recorded\n", len(lat.State().Report.Frames))
}
