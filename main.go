/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/okapi/engine"
	"github.com/spaghettifunk/okapi/engine/config"
	"github.com/spaghettifunk/okapi/engine/core"
	"github.com/spaghettifunk/okapi/testbed"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the TOML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	appConfig, err := engine.NewApplicationConfig(cfg)
	if err != nil {
		core.LogFatal("invalid configuration: %s", err)
	}

	tb := testbed.NewTestGame(appConfig)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("failed to create engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// The handler only requests a quit; teardown happens on the render
	// goroutine once the loop exits.
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
