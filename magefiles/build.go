//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/naga"
	"github.com/magefile/mage/mg"
)

const shaderDir = "internal/gpu/shaders"

type Build mg.Namespace

// Compiles every WGSL shader to SPIR-V to catch errors before runtime.
func (Build) Shaders() error {
	files, err := filepath.Glob(filepath.Join(shaderDir, "*.wgsl"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no shaders in %s", shaderDir)
	}
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		spirv, err := naga.Compile(string(src))
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if mg.Verbose() {
			fmt.Printf("%s: %d bytes of SPIR-V\n", f, len(spirv))
		}
	}
	return nil
}

// Builds the demo binary into bin/.
func (Build) Demo() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/glimmerdemo", "./cmd/glimmerdemo"), withStream())
	return err
}
