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

package linuxerr_test

import (
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
)

func TestEquals(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{name: "same", err: linuxerr.EDEADLK, want: true},
		{name: "unix", err: unix.EDEADLK, want: true},
		{name: "other", err: linuxerr.EINVAL, want: false},
		{name: "nil", err: nil, want: false},
		{name: "plain", err: fmt.Errorf("deadlock"), want: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := linuxerr.Equals(linuxerr.EDEADLK, tc.err); got != tc.want {
				t.Errorf("Equals(EDEADLK, %v) got: %v, expected: %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorFromUnix(t *testing.T) {
	if err := linuxerr.ErrorFromUnix(0); err != nil {
		t.Errorf("ErrorFromUnix(0) got: %v, expected: nil", err)
	}
	if err := linuxerr.ErrorFromUnix(unix.ECHILD); err != linuxerr.ECHILD {
		t.Errorf("ErrorFromUnix(ECHILD) got: %v, expected: %v", err, linuxerr.ECHILD)
	}
	if err := linuxerr.ErrorFromUnix(unix.EHWPOISON); err == nil || linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("ErrorFromUnix(EHWPOISON) got: %v, expected unregistered sentinel", err)
	}
}
