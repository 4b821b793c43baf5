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

package userprog

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapWriter map[string][]byte

func (m mapWriter) WriteFile(path string, data []byte) {
	m[path] = data
}

func TestProgramsAssemble(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, _ := Lookup(name)
			if p.Name != name {
				t.Errorf("Name got: %q, expected: %q", p.Name, name)
			}
			img, err := p.Image()
			if err != nil {
				t.Fatalf("Image failed: %v", err)
			}
			if len(img.Segments) == 0 {
				t.Errorf("program has no segments")
			}
			if _, err := p.Binary(); err != nil {
				t.Errorf("Binary failed: %v", err)
			}
			for _, need := range p.Needs {
				if _, ok := Lookup(need); !ok {
					t.Errorf("needs unknown program %q", need)
				}
			}
		})
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if !slices.IsSorted(names) {
		t.Errorf("Names not sorted: %v", names)
	}
	for _, name := range suite {
		if !slices.Contains(names, name) {
			t.Errorf("suite program %q is not registered", name)
		}
	}
	if _, ok := Lookup("no-such-program"); ok {
		t.Errorf("Lookup of unknown program succeeded")
	}
}

func TestInstall(t *testing.T) {
	for _, tc := range []struct {
		name  string
		progs []string
		want  []string
	}{
		{
			name:  "single",
			progs: []string{"hello"},
			want:  []string{"hello"},
		},
		{
			name:  "needs",
			progs: []string{"spawntest"},
			want:  []string{"hello", "spawntest"},
		},
		{
			name:  "duplicates",
			progs: []string{"exectest", "spawntest", "hello"},
			want:  []string{"exectest", "hello", "spawntest"},
		},
		{
			name:  "suite",
			progs: []string{"usertests"},
			want:  append(slices.Clone(suite), "usertests"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := mapWriter{}
			if err := Install(w, tc.progs...); err != nil {
				t.Fatalf("Install failed: %v", err)
			}
			var got []string
			for name := range w {
				got = append(got, name)
			}
			slices.Sort(got)
			want := slices.Clone(tc.want)
			slices.Sort(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("installed programs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstallUnknown(t *testing.T) {
	if err := Install(mapWriter{}, "hello", "no-such-program"); err == nil {
		t.Errorf("Install of unknown program succeeded")
	}
}
