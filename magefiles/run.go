//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the demo headless on the noop backend.
func (Run) Demo() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run demo...")
	_, err := executeCmd("go", withArgs("run", "./cmd/glimmerdemo", "-backend", "noop", "-frames", "300"), withStream())
	return err
}
