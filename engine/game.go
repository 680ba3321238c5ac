package engine

import "github.com/spaghettifunk/ffbridge/engine/renderer"

// Game is the client driven by Engine.Run. Every callback that receives a
// device runs on the command stream.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

// Initialize creates the game's device objects. It is called again after
// the device has been recreated.
type Initialize func(dev *renderer.Device) error
type Update func(deltaTime float64) error
type Render func(dev *renderer.Device, deltaTime float64) error
type Shutdown func(dev *renderer.Device) error
