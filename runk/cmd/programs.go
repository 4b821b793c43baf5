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
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/edukernel/pkg/userprog"
)

// Programs implements subcommands.Command for the "programs" command.
type Programs struct {
	dump string
}

// Name implements subcommands.Command.Name.
func (*Programs) Name() string {
	return "programs"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Programs) Synopsis() string {
	return "list the built-in user programs"
}

// Usage implements subcommands.Command.Usage.
func (*Programs) Usage() string {
	return `programs [-dump <dir>] - list the built-in user programs.

With -dump, the encoded image of every program is also written to <dir>, for
use as a "path" entry of a workload file.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Programs) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.dump, "dump", "", "directory to write program images to.")
}

// Execute implements subcommands.Command.Execute.
func (p *Programs) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if p.dump != "" {
		if err := os.MkdirAll(p.dump, 0755); err != nil {
			return Errorf("creating %q: %v", p.dump, err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tEXIT\tNEEDS\tDESCRIPTION\n")
	for _, name := range userprog.Names() {
		prog, _ := userprog.Lookup(name)
		needs := strings.Join(prog.Needs, ",")
		if needs == "" {
			needs = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", prog.Name, prog.ExitCode, needs, prog.Description)

		if p.dump == "" {
			continue
		}
		bin, err := prog.Binary()
		if err != nil {
			return Errorf("%v", err)
		}
		if err := os.WriteFile(filepath.Join(p.dump, prog.Name), bin, 0644); err != nil {
			return Errorf("writing %q: %v", prog.Name, err)
		}
	}
	if err := w.Flush(); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
