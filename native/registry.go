package native

import (
	"sync"
)

// DriverFactory creates a new driver instance.
type DriverFactory func() Driver

// Well-known driver names.
const (
	// DriverWGPU is the gogpu/wgpu-backed driver.
	DriverWGPU = "wgpu"

	// DriverSoftware is the in-memory fallback driver.
	DriverSoftware = "software"
)

// registry holds registered drivers.
var (
	registryMu sync.RWMutex
	drivers    = make(map[string]DriverFactory)
	// driverPriority orders selection in Default. The software driver
	// sits last; it links everywhere and always initializes.
	driverPriority = []string{DriverWGPU, DriverSoftware}
)

// Register makes a driver available under name, replacing any earlier
// registration. Driver packages call it from init, so importing a
// driver package is enough to enable it.
func Register(name string, factory DriverFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	drivers[name] = factory
}

// Unregister removes a driver registration. Tests use it to force
// selection of a specific driver.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(drivers, name)
}

// Available returns the registered driver names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether a driver is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := drivers[name]
	return ok
}

// Get instantiates the driver registered under name, or nil when no
// such registration exists.
func Get(name string) Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := drivers[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default instantiates the highest-priority registered driver, or nil
// when nothing is registered.
func Default() Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range driverPriority {
		if factory, ok := drivers[name]; ok {
			if d := factory(); d != nil {
				return d
			}
		}
	}

	// Out-of-tree drivers register under names the priority list does
	// not know; any of them beats returning nothing.
	for _, factory := range drivers {
		if d := factory(); d != nil {
			return d
		}
	}

	return nil
}

// MustDefault returns the default driver or panics.
func MustDefault() Driver {
	d := Default()
	if d == nil {
		panic("native: no driver available")
	}
	return d
}

// InitDefault selects the default driver and initializes it.
func InitDefault() (Driver, error) {
	d := Default()
	if d == nil {
		return nil, ErrDriverNotAvailable
	}

	if err := d.Init(); err != nil {
		return nil, err
	}

	return d, nil
}
