//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Check mg.Namespace

// Runs go vet on every package.
func (Check) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs the tests with the race detector.
func (Check) Test() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."),
		withEnv("CGO_ENABLED", "1"), withStream())
	return err
}

// Runs vet and the tests.
func (Check) All() {
	mg.SerialDeps(Check.Vet, Check.Test)
}
