package param

// Well-known registry keys. Components agree on these names instead of
// importing each other.
const (
	// KeyPresentFrame is the frame index most recently presented.
	// Published as uint32 by the latency plugin's present marker and
	// read by the tag store to drive recycling.
	KeyPresentFrame = "interpose.frame.present"

	// KeyCurrentFrame is the frame index the application should use for
	// new work. Published as uint32.
	KeyCurrentFrame = "interpose.frame.current"

	// KeyComputeAPI is the compute backend interface.
	// Published as compute.Interface by the common plugin.
	KeyComputeAPI = "interpose.api.compute"

	// KeyTagAPI is the resource tag store.
	// Published as *tag.Store by the common plugin.
	KeyTagAPI = "interpose.api.tag"

	// KeyDeviceBundle is the GPU device bundle shared with plugins.
	// Published as gpucontext.DeviceProvider.
	KeyDeviceBundle = "interpose.api.device"

	// KeyRegisterEvaluate is the evaluate-callback registrar.
	// Published as a func by the common plugin; plugins call it to hook
	// feature evaluation on a command list.
	KeyRegisterEvaluate = "interpose.api.register-evaluate"
)
