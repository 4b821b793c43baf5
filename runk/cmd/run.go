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
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/fsimpl/tmpfs"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
	"gvisor.dev/edukernel/pkg/sentry/platform/interp"
	syscalls "gvisor.dev/edukernel/pkg/sentry/syscalls/edu"
	"gvisor.dev/edukernel/runk/config"
)

// drainTimeout bounds the wait for memory to be returned after init exits.
const drainTimeout = time.Second

// Run implements subcommands.Command for the "run" command.
type Run struct {
	workload string
	stats    bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot a kernel and run a workload until init exits"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <program> | run [flags] -workload <file.yaml>

Boots a kernel, starts init and waits for it to exit. The exit status of runk
is the exit status of init. <program> names a built-in user program; see
"runk programs".
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.workload, "workload", "", "YAML file describing the files to preload and the init program.")
	f.BoolVar(&r.stats, "stats", false, "print kernel statistics to stderr on exit.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	code := args[1].(*int32)

	var (
		w   *Workload
		dir string
		err error
	)
	switch {
	case r.workload != "" && f.NArg() == 0:
		w, dir, err = loadWorkload(r.workload)
		if err != nil {
			return Errorf("%v", err)
		}
	case r.workload == "" && f.NArg() == 1:
		w = builtinWorkload(f.Arg(0))
		if err := w.validate(); err != nil {
			return Errorf("%v", err)
		}
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}

	k, err := boot(conf, w, dir)
	if err != nil {
		return Errorf("booting kernel: %v", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	*code, err = wait(ctx, k)
	if err != nil {
		log.Warningf("%v", err)
	}
	if r.stats {
		printStats(k.Stats())
	}
	return subcommands.ExitSuccess
}

// boot creates a kernel configured by conf with w's files installed, and
// starts w's init.
func boot(conf *config.Config, w *Workload, dir string) (*kernel.Kernel, error) {
	fsys := tmpfs.NewFilesystem()
	if err := w.install(fsys, dir); err != nil {
		return nil, err
	}
	k := &kernel.Kernel{}
	if err := k.Init(kernel.InitKernelArgs{
		Config:       conf.KernelConfig(),
		Platform:     interp.New(conf.Quantum),
		MemoryFile:   pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Pages: conf.Frames}),
		Filesystem:   fsys,
		SyscallTable: syscalls.Table,
		Stdin:        os.Stdin,
		Stdout:       os.Stdout,
	}); err != nil {
		return nil, err
	}
	if _, err := k.CreateInit(w.Init); err != nil {
		return nil, err
	}
	log.Infof("Started init %q", w.Init)
	return k, nil
}

// wait waits for k's init to exit and returns its exit code. If ctx is
// cancelled first, the kernel is shut down as if init had been killed.
// Once init exits, wait gives the kernel a short while to return all
// memory, and reports an error if it does not.
func wait(ctx context.Context, k *kernel.Kernel) (int32, error) {
	var code int32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		code = k.WaitExited()
		return nil
	})
	g.Go(func() error {
		select {
		case <-k.Exited():
		case <-gctx.Done():
			log.Infof("Shutting down: %v", gctx.Err())
			k.Shutdown(edu.ExitKilled)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return code, err
	}
	log.Infof("init exited with code %d", code)

	dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(10*time.Millisecond), dctx)
	err := backoff.Retry(func() error {
		if used := k.Stats().Memory.Used; used != 0 {
			return fmt.Errorf("%s of memory still in use", humanize.IBytes(used))
		}
		return nil
	}, b)
	return code, err
}

func printStats(s kernel.KernelStats) {
	fmt.Fprintf(os.Stderr, "processes: %d (%d zombies)\n", s.Processes, s.Zombies)
	fmt.Fprintf(os.Stderr, "memory: %s of %s in use\n", humanize.IBytes(s.Memory.Used), humanize.IBytes(s.Memory.Total))
	fmt.Fprintf(os.Stderr, "scheduler: %d CPUs, %s dispatches\n", s.Scheduler.CPUs, humanize.Comma(int64(s.Scheduler.Dispatches)))
}
