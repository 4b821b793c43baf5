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

// Package config provides basic infrastructure to set configuration settings
// for runk. Each setting that can be changed from the command line must have
// a corresponding flag, and the flag name is recorded in the `flag` tag of the
// Config field.
package config

import (
	"fmt"
	"time"

	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/loader"
)

// Config holds configuration that is not part of a workload.
type Config struct {
	// CPUs is the number of tasks that may run at once.
	CPUs int `flag:"cpus"`

	// Quantum is the number of instructions a task runs before it is
	// preempted.
	Quantum int `flag:"quantum"`

	// Tick is the period of the timer loop that wakes sleeping tasks.
	Tick time.Duration `flag:"tick"`

	// Frames is the number of physical pages available to applications.
	Frames uint64 `flag:"frames"`

	// StackSize is the size in bytes of every thread stack.
	StackSize uint64 `flag:"stack-size"`

	// DeadlockDetect enables deadlock detection in every process from the
	// start, as if it had called enable_deadlock_detect(1).
	DeadlockDetect bool `flag:"deadlock-detect"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format"`

	// ConfigFile is the path of a TOML file holding flag values.
	ConfigFile string `flag:"config"`
}

func (c *Config) validate() error {
	if c.CPUs < 1 {
		return fmt.Errorf("cpus must be at least 1, got: %d", c.CPUs)
	}
	if c.Quantum < 1 {
		return fmt.Errorf("quantum must be at least 1, got: %d", c.Quantum)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got: %v", c.Tick)
	}
	if c.Frames == 0 {
		return fmt.Errorf("frames must be positive")
	}
	if c.StackSize == 0 || c.StackSize%hostarch.PageSize != 0 {
		return fmt.Errorf("stack-size must be a positive multiple of the page size, got: %d", c.StackSize)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// KernelConfig returns the kernel settings of c.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		CPUs:           c.CPUs,
		Tick:           c.Tick,
		StackSize:      c.StackSize,
		DeadlockDetect: c.DeadlockDetect,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("\t%s", f)
	}
	if !log.IsLogging(log.Debug) {
		return
	}
	log.Debugf("Defaults: cpus=%d quantum=%d tick=%v frames=%d stack-size=%d", defaultCPUs, defaultQuantum, kernel.DefaultTick, defaultFrames, loader.DefaultStackSize)
}
