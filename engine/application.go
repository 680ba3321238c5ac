package engine

type ApplicationConfig struct {
	// The application name reported to the Vulkan driver. Overrides the
	// configuration file when set.
	Name string
	// Path of the TOML configuration file. Empty runs on defaults.
	ConfigPath string
	// Watch the configuration file and apply reloads while running.
	WatchConfig bool
	// Frames to render before Run returns. 0 runs until quit.
	MaxFrames uint64
	// Times a lost device is recreated before Run gives up.
	MaxDeviceRecreates int
}
