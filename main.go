/*
Testbed client for the fixed-function translation core. It renders a
fixed number of frames off-screen and can write the last one to a BMP.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/ffbridge/engine"
	"github.com/spaghettifunk/ffbridge/engine/core"
	"github.com/spaghettifunk/ffbridge/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "path of the TOML configuration")
	frames := flag.Uint64("frames", 120, "frames to render, 0 runs until interrupted")
	out := flag.String("out", "", "write the last frame to this BMP file")
	texture := flag.String("texture", "", "image file shown on the quad")
	watch := flag.Bool("watch", false, "reload the configuration when it changes")
	flag.Parse()

	tb := testbed.NewTestGame(&engine.ApplicationConfig{
		Name:               "ffbridge testbed",
		ConfigPath:         *configPath,
		WatchConfig:        *watch,
		MaxFrames:          *frames,
		MaxDeviceRecreates: 1,
	}, testbed.Options{Screenshot: *out, Texture: *texture})

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		e.Shutdown()
		core.LogFatal("initialize: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError("run: %s", runErr)
		os.Exit(int(core.KindOf(runErr)))
	}
}
