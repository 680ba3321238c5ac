package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/spaghettifunk/ffbridge/engine/config"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/engine/renderer"
	"github.com/spaghettifunk/ffbridge/engine/renderer/metadata"
)

// fakeBackend implements the calls a device makes to come up, clear,
// present and go away. Anything else panics through the nil embedded
// interface.
type fakeBackend struct {
	renderer.Backend
	images     uint64
	submits    int
	failSubmit error
	destroyed  bool
}

func (f *fakeBackend) DeviceIdentity() metadata.DeviceIdentity {
	return metadata.DeviceIdentity{Name: "fake"}
}

func (f *fakeBackend) CreateImage(metadata.ImageDesc) (metadata.ImageHandle, error) {
	f.images++
	return metadata.ImageHandle(f.images), nil
}

func (f *fakeBackend) UploadImage(metadata.ImageHandle, metadata.ImageData) error { return nil }
func (f *fakeBackend) DestroyImage(metadata.ImageHandle) {}
func (f *fakeBackend) WaitIdle() error { return nil }
func (f *fakeBackend) Destroy() { f.destroyed = true }

func (f *fakeBackend) BeginCommands(metadata.ClearValues) (renderer.CommandBuffer, error) {
	return fakeCommands{}, nil
}

func (f *fakeBackend) Submit(renderer.CommandBuffer) error {
	f.submits++
	return f.failSubmit
}

type fakeCommands struct {
	renderer.CommandBuffer
}

func (fakeCommands) End() error { return nil }

type fakeFactory struct {
	backends []*fakeBackend
	lose     func(n int) bool
}

func (f *fakeFactory) open(*config.Config) (renderer.Backend, error) {
	b := &fakeBackend{}
	if f.lose != nil && f.lose(len(f.backends)) {
		b.failSubmit = core.ErrDeviceLost
	}
	f.backends = append(f.backends, b)
	return b, nil
}

func newTestEngine(t *testing.T, g *Game, f *fakeFactory) *Engine {
	t.Helper()
	e, err := New(g, WithBackendFactory(f.open))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	return e
}

func clearingGame(app *ApplicationConfig, inits, renders *int) *Game {
	return &Game{
		ApplicationConfig: app,
		FnInitialize: func(dev *renderer.Device) error {
			*inits++
			return nil
		},
		FnRender: func(dev *renderer.Device, dt float64) error {
			*renders++
			return dev.Clear(0xff000000, 1, 0)
		},
	}
}

func TestEngineRunsFrames(t *testing.T) {
	var inits, renders int
	f := &fakeFactory{}
	e := newTestEngine(t, clearingGame(&ApplicationConfig{MaxFrames: 3}, &inits, &renders), f)

	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if inits != 1 || renders != 3 {
		t.Fatalf("inits = %d, renders = %d", inits, renders)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(f.backends) != 1 || f.backends[0].submits != 3 || !f.backends[0].destroyed {
		t.Fatalf("backend = %+v", f.backends[0])
	}
}

func TestEngineRecreatesLostDevice(t *testing.T) {
	var inits, renders int
	f := &fakeFactory{lose: func(n int) bool { return n == 0 }}
	app := &ApplicationConfig{MaxFrames: 2, MaxDeviceRecreates: 1}
	e := newTestEngine(t, clearingGame(app, &inits, &renders), f)
	defer e.Shutdown()

	var lost []string
	e.Events().Register(core.EVENT_CODE_DEVICE_LOST, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		lost = append(lost, data.DeviceID)
		return false
	})
	first := e.PrimaryDevice()

	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if len(f.backends) != 2 || !f.backends[0].destroyed {
		t.Fatalf("backends = %d, first destroyed = %v", len(f.backends), f.backends[0].destroyed)
	}
	if inits != 2 {
		t.Fatalf("inits = %d, want 2", inits)
	}
	if e.PrimaryDevice() == first {
		t.Fatal("primary device not replaced")
	}
	if _, ok := e.Device(first); ok {
		t.Fatal("lost device still registered")
	}
	if len(lost) != 1 || lost[0] != first.String() {
		t.Fatalf("lost events = %v", lost)
	}
}

func TestEngineGivesUpOnRepeatedLoss(t *testing.T) {
	var inits, renders int
	f := &fakeFactory{lose: func(int) bool { return true }}
	e := newTestEngine(t, clearingGame(&ApplicationConfig{MaxFrames: 5, MaxDeviceRecreates: 1}, &inits, &renders), f)
	defer e.Shutdown()

	err := e.Run()
	if !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("err = %v", err)
	}
	if core.KindOf(err) != core.ErrorKindDeviceLost {
		t.Fatalf("kind = %v", core.KindOf(err))
	}
	if len(f.backends) != 2 {
		t.Fatalf("backends = %d", len(f.backends))
	}
}

func TestEngineQuit(t *testing.T) {
	var inits, renders int
	g := clearingGame(&ApplicationConfig{}, &inits, &renders)
	f := &fakeFactory{}
	e := newTestEngine(t, g, f)
	defer e.Shutdown()

	updates := 0
	g.FnUpdate = func(dt float64) error {
		updates++
		if updates == 2 {
			e.Quit()
		}
		return nil
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if renders != 2 {
		t.Fatalf("renders = %d, want 2", renders)
	}
}

func TestEngineDeviceLifecycle(t *testing.T) {
	f := &fakeFactory{}
	e := newTestEngine(t, &Game{ApplicationConfig: &ApplicationConfig{}}, f)

	created := 0
	e.Events().Register(core.EVENT_CODE_DEVICE_CREATED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		created++
		return false
	})

	id, err := e.CreateDevice()
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created events = %d", created)
	}
	if err := e.Do(id, func(dev *renderer.Device) error { return dev.BeginScene() }); err != nil {
		t.Fatal(err)
	}
	if err := e.DestroyDevice(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Do(id, func(*renderer.Device) error { return nil }); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Do on destroyed device err = %v", err)
	}
	if err := e.DestroyDevice(uuid.New()); !errors.Is(err, core.ErrInvalidParameter) {
		t.Fatalf("destroy unknown err = %v", err)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(f.backends) != 2 || !f.backends[0].destroyed || !f.backends[1].destroyed {
		t.Fatal("shutdown left a backend alive")
	}
	if _, err := e.CreateDevice(); err == nil {
		t.Fatal("CreateDevice after shutdown succeeded")
	}
}

func TestRunBeforeInitialize(t *testing.T) {
	e, err := New(&Game{ApplicationConfig: &ApplicationConfig{}}, WithBackendFactory((&fakeFactory{}).open))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Run(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
}
