package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/config"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/platform"
	"github.com/spaghettifunk/ffbridge/engine/renderer"
	"github.com/spaghettifunk/ffbridge/engine/renderer/cache"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
	"github.com/spaghettifunk/ffbridge/engine/renderer/vulkan"
	"github.com/spaghettifunk/ffbridge/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

var (
	ErrUnknownDevice  = fmt.Errorf("unknown device: %w", core.ErrInvalidParameter)
	ErrNotInitialized = fmt.Errorf("engine is not initialized: %w", core.ErrInvalidParameter)
)

// BackendFactory opens the backend of a new device.
type BackendFactory func(cfg *config.Config) (renderer.Backend, error)

type Option func(*Engine)

// WithBackendFactory replaces the Vulkan backend. The platform layer is not
// started when a factory is given.
func WithBackendFactory(f BackendFactory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithDeviceOptions are passed to every device the engine creates.
func WithDeviceOptions(opts ...renderer.Option) Option {
	return func(e *Engine) { e.deviceOpts = append(e.deviceOpts, opts...) }
}

// Engine owns the devices and the command stream every device call goes
// through.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	platform     *platform.Platform
	events       *core.EventBus
	stream       *systems.CommandStream
	watcher      *config.Watcher
	clock        *core.Clock
	lastTime     float64
	factory      BackendFactory
	deviceOpts   []renderer.Option

	mu      sync.RWMutex
	cfg     *config.Config
	devices map[uuid.UUID]*renderer.Device
	primary uuid.UUID

	quit atomic.Bool
	lost atomic.Bool
}

func New(g *Game, opts ...Option) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game without application config: %w", core.ErrInvalidParameter)
	}
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		platform:     platform.New(),
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		devices:      make(map[uuid.UUID]*renderer.Device),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.currentStage = EngineStageBooting
	cfg, err := config.Load(g.ApplicationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.ApplicationConfig.Name != "" {
		cfg.Device.AppName = g.ApplicationConfig.Name
	}
	if err := core.ConfigureLogging(cfg.Logging()); err != nil {
		return nil, err
	}
	e.cfg = cfg

	if e.stream, err = systems.NewCommandStream(cfg.Stream.QueueSize); err != nil {
		return nil, err
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("initialize in stage %d: %w", e.currentStage, core.ErrInvalidParameter)
	}
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_DEVICE_LOST, e, e.onDeviceLost)

	if e.factory == nil {
		e.platform.Startup()
		e.factory = e.vulkanBackend
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	app := e.gameInstance.ApplicationConfig
	if app.WatchConfig && app.ConfigPath != "" {
		w, err := config.NewWatcher(app.ConfigPath)
		if err != nil {
			return err
		}
		w.OnReload(e.applyConfig)
		e.watcher = w
	}

	id, err := e.CreateDevice()
	if err != nil {
		return err
	}
	e.primary = id
	if fn := e.gameInstance.FnInitialize; fn != nil {
		if err := e.Do(id, fn); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized, device %s", id)
	return nil
}

// Run drives the game one frame at a time until quit, MaxFrames, or an
// error. A lost device is recreated up to MaxDeviceRecreates times.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return ErrNotInitialized
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	g := e.gameInstance
	app := g.ApplicationConfig
	var frames uint64
	recreates := 0

	for !e.quit.Load() {
		if app.MaxFrames > 0 && frames >= app.MaxFrames {
			break
		}
		if e.lost.Swap(false) {
			if recreates >= app.MaxDeviceRecreates {
				return fmt.Errorf("device %s lost after %d recreates: %w", e.primary, recreates, core.ErrDeviceLost)
			}
			recreates++
			if err := e.recoverPrimary(); err != nil {
				return err
			}
		}

		e.clock.Update()
		var currentTime float64 = e.clock.Elapsed()
		var delta float64 = currentTime - e.lastTime
		var frameStartTime float64 = e.platform.GetAbsoluteTime()

		if g.FnUpdate != nil {
			if err := g.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				return err
			}
		}

		err := e.Do(e.primary, func(dev *renderer.Device) error {
			if g.FnRender != nil {
				if err := g.FnRender(dev, delta); err != nil {
					return err
				}
			}
			return dev.Present()
		})
		if err != nil {
			if errors.Is(err, core.ErrDeviceLost) && e.lost.Load() {
				continue
			}
			core.LogError("game render failed, shutting down: %s", err)
			return err
		}

		frames++
		e.lastTime = currentTime
		core.LogDebug("frame %d: %.3fms", frames, (e.platform.GetAbsoluteTime()-frameStartTime)*1000)
	}
	fps, frameMS := core.MetricsFrame()
	core.LogInfo("ran %d frames (%.1f fps, %.3fms)", frames, fps, frameMS)
	return nil
}

func (e *Engine) recoverPrimary() error {
	core.LogWarn("recreating lost device %s", e.primary)
	id, err := e.RecreateDevice(e.primary)
	if err != nil {
		return err
	}
	e.primary = id
	if fn := e.gameInstance.FnInitialize; fn != nil {
		return e.Do(id, fn)
	}
	return nil
}

// Quit stops Run after the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Stream() *systems.CommandStream {
	return e.stream
}

// PrimaryDevice is the device the game renders to.
func (e *Engine) PrimaryDevice() uuid.UUID {
	return e.primary
}

func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// CreateDevice opens a backend and builds a device on the command stream.
func (e *Engine) CreateDevice() (uuid.UUID, error) {
	v, err := e.stream.EnqueueAndWait(func() (any, error) {
		return e.createDevice()
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (e *Engine) createDevice() (uuid.UUID, error) {
	cfg := e.Config()
	backend, err := e.factory(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("open backend: %w", err)
	}
	opts := append([]renderer.Option{renderer.WithLostHandler(e.deviceLost)}, e.deviceOpts...)
	dev, err := renderer.NewDevice(backend, cfg, opts...)
	if err != nil {
		backend.Destroy()
		return uuid.Nil, err
	}

	e.mu.Lock()
	e.devices[dev.ID()] = dev
	e.mu.Unlock()
	e.events.Fire(core.EVENT_CODE_DEVICE_CREATED, e, core.EventContext{DeviceID: dev.ID().String()})
	return dev.ID(), nil
}

// Device returns the device with the given id. The device may only be used
// from a work item on the command stream.
func (e *Engine) Device(id uuid.UUID) (*renderer.Device, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	dev, ok := e.devices[id]
	return dev, ok
}

// Do runs fn against the device on the command stream and waits for it.
func (e *Engine) Do(id uuid.UUID, fn func(dev *renderer.Device) error) error {
	_, err := e.Submit(id, fn).Wait()
	return err
}

// Submit queues fn against the device and returns without waiting.
func (e *Engine) Submit(id uuid.UUID, fn func(dev *renderer.Device) error) *systems.Ticket {
	return e.stream.Enqueue(func() (any, error) {
		dev, ok := e.Device(id)
		if !ok {
			return nil, fmt.Errorf("%s: %w", id, ErrUnknownDevice)
		}
		return nil, fn(dev)
	})
}

// RecreateDevice destroys the device and builds a new one from the current
// configuration. Objects created on the old device do not carry over.
func (e *Engine) RecreateDevice(id uuid.UUID) (uuid.UUID, error) {
	v, err := e.stream.EnqueueAndWait(func() (any, error) {
		if err := e.destroyDevice(id); err != nil {
			return uuid.Nil, err
		}
		return e.createDevice()
	})
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (e *Engine) DestroyDevice(id uuid.UUID) error {
	_, err := e.stream.EnqueueAndWait(func() (any, error) {
		return nil, e.destroyDevice(id)
	})
	return err
}

func (e *Engine) destroyDevice(id uuid.UUID) error {
	e.mu.Lock()
	dev, ok := e.devices[id]
	delete(e.devices, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownDevice)
	}
	core.LogDebug("device %s stats: %+v", id, dev.Stats())
	dev.Destroy()
	return nil
}

func (e *Engine) deviceLost(id uuid.UUID, err error) {
	e.events.Fire(core.EVENT_CODE_DEVICE_LOST, e, core.EventContext{DeviceID: id.String(), Err: err})
}

func (e *Engine) vulkanBackend(cfg *config.Config) (renderer.Backend, error) {
	dir := cfg.Cache.BlobDir
	b, err := vulkan.New(cfg.Device,
		vulkan.WithInstanceProcAddr(e.platform.InstanceProcAddr()),
		vulkan.WithPipelineCacheLoader(func(id metadata.DeviceIdentity) []byte {
			if dir == "" {
				return nil
			}
			data, err := cache.LoadBlob(dir, id)
			if err != nil {
				core.LogWarn("pipeline cache blob: %s", err)
				return nil
			}
			return data
		}),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// applyConfig takes the new log settings immediately. Device and cache
// settings apply to devices created afterwards.
func (e *Engine) applyConfig(cfg *config.Config) {
	if err := core.ConfigureLogging(cfg.Logging()); err != nil {
		core.LogWarn("reloaded config: %s", err)
		return
	}
	if name := e.gameInstance.ApplicationConfig.Name; name != "" {
		cfg.Device.AppName = name
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	core.LogInfo("configuration reloaded")
	e.events.Fire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{Text: e.gameInstance.ApplicationConfig.ConfigPath})
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.quit.Store(true)
		return true
	}
	return false
}

func (e *Engine) onDeviceLost(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	if data.DeviceID == e.primary.String() {
		e.lost.Store(true)
	}
	// other listeners may want to know too
	return false
}

// Shutdown runs the game's shutdown, destroys every device on the command
// stream, then stops the stream and the platform.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if fn := e.gameInstance.FnShutdown; fn != nil && e.primary != uuid.Nil {
		if err := e.Do(e.primary, fn); err != nil {
			core.LogWarn("game shutdown: %s", err)
		}
	}
	e.stream.EnqueueAndWait(func() (any, error) {
		e.mu.RLock()
		ids := make([]uuid.UUID, 0, len(e.devices))
		for id := range e.devices {
			ids = append(ids, id)
		}
		e.mu.RUnlock()
		for _, id := range ids {
			e.destroyDevice(id)
		}
		return nil, nil
	})
	e.stream.Shutdown()

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	e.events.Shutdown()
	e.platform.Shutdown()
	core.LogInfo("engine shut down")
	errs = append(errs, core.CloseLogging())
	return errors.Join(errs...)
}
