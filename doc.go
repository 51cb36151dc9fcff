// Package interpose sits between an application and its graphics
// driver and runs feature plugins on the API stream.
//
// The runtime interposes the device, swapchain and queue entry points.
// Each call runs the before hooks registered by loaded plugins, then
// the real driver entry point, then the after hooks. Plugins exchange
// state through a shared parameter registry and publish versioned
// shared structures to each other.
//
// # Basic Usage
//
//	rt, err := interpose.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Close()
//
//	inst, res := rt.CreateInstance(&native.InstanceCreateInfo{})
//	dev, res := rt.CreateDevice(inst, &native.DeviceCreateInfo{...})
//
// # Drivers
//
// Concrete backends register themselves with the native registry.
// Importing driver/software always provides the in-memory fallback;
// driver/wgpu adds the GPU backend:
//
//	import (
//		_ "github.com/gogpu/interpose/driver/software"
//		_ "github.com/gogpu/interpose/driver/wgpu"
//	)
//
// # Logging
//
// The runtime produces no log output by default. Call [SetLogger] to
// enable it, or set INTERPOSE_LOG_LEVEL to configure a stderr logger
// from the environment.
package interpose
