// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"gvisor.dev/edukernel/pkg/sentry/fsimpl/tmpfs"
	"gvisor.dev/edukernel/pkg/userprog"
)

// Workload describes what to run: the files to preload into the kernel's
// filesystem and the program to start as init.
type Workload struct {
	// Init is the path of the init program.
	Init string `yaml:"init"`

	// Files are preloaded before init starts.
	Files []WorkloadFile `yaml:"files"`
}

// WorkloadFile is one preloaded file. Exactly one of Program, Path and Data
// must be set.
type WorkloadFile struct {
	// Name is the file's path in the kernel's filesystem.
	Name string `yaml:"name"`

	// Program names a built-in user program. The programs it needs are
	// installed along with it.
	Program string `yaml:"program,omitempty"`

	// Path is a host file holding an encoded image. Relative paths are
	// resolved against the directory of the workload file.
	Path string `yaml:"path,omitempty"`

	// Data is the literal contents of the file.
	Data string `yaml:"data,omitempty"`
}

// builtinWorkload returns a workload that runs the built-in program name.
func builtinWorkload(name string) *Workload {
	return &Workload{
		Init:  name,
		Files: []WorkloadFile{{Name: name, Program: name}},
	}
}

// loadWorkload reads the workload file at path.
func loadWorkload(path string) (*Workload, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	w, err := parseWorkload(f)
	if err != nil {
		return nil, "", fmt.Errorf("workload %q: %w", path, err)
	}
	return w, filepath.Dir(path), nil
}

// parseWorkload decodes and validates a YAML workload.
func parseWorkload(r io.Reader) (*Workload, error) {
	w := &Workload{}
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(w); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workload) validate() error {
	if w.Init == "" {
		return fmt.Errorf("init is not set")
	}
	names := make(map[string]bool)
	for i, f := range w.Files {
		if f.Name == "" {
			return fmt.Errorf("file %d has no name", i)
		}
		if names[f.Name] {
			return fmt.Errorf("file %q listed twice", f.Name)
		}
		names[f.Name] = true

		sources := 0
		for _, s := range []string{f.Program, f.Path, f.Data} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			return fmt.Errorf("file %q must set exactly one of program, path and data", f.Name)
		}
		if f.Program != "" {
			if _, ok := userprog.Lookup(f.Program); !ok {
				return fmt.Errorf("file %q: unknown program %q", f.Name, f.Program)
			}
		}
	}
	return nil
}

// install writes the workload's files to fsys. dir is the directory relative
// host paths are resolved against.
func (w *Workload) install(fsys *tmpfs.Filesystem, dir string) error {
	for _, f := range w.Files {
		switch {
		case f.Program != "":
			p, _ := userprog.Lookup(f.Program)
			if err := userprog.Install(fsys, p.Needs...); err != nil {
				return err
			}
			bin, err := p.Binary()
			if err != nil {
				return err
			}
			fsys.WriteFile(f.Name, bin)
		case f.Path != "":
			path := f.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("file %q: %w", f.Name, err)
			}
			fsys.WriteFile(f.Name, data)
		default:
			fsys.WriteFile(f.Name, []byte(f.Data))
		}
	}
	return nil
}
