//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Renders a short off-screen session and writes the last frame to frame.bmp.
func (Run) Testbed() error {
	mg.Deps(Build.Testbed)
	fmt.Println("Run testbed...")
	if _, err := executeCmd("bin/ffbridge", withArgs("-config", "config.toml", "-frames", "120", "-out", "frame.bmp"), withStream()); err != nil {
		return err
	}
	return nil
}

// Same as Testbed with the Vulkan validation layer and debug logging on.
func (Run) Validate() error {
	mg.Deps(Build.Testbed)
	if _, err := executeCmd("bin/ffbridge", withArgs("-config", "config.validation.toml", "-frames", "30"), withStream()); err != nil {
		return err
	}
	return nil
}
