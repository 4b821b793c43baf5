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

package log

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Test that integers can be properly unmarshaled.
func TestUnmarshalFromInt(t *testing.T) {
	tcs := []struct {
		i    int
		want Level
	}{
		{0, Warning},
		{1, Info},
		{2, Debug},
	}

	for _, tc := range tcs {
		j, err := json.Marshal(tc.i)
		if err != nil {
			t.Errorf("error marshaling %v: %v", tc.i, err)
		}
		var lv Level
		if err := lv.UnmarshalJSON(j); err != nil {
			t.Errorf("error unmarshaling %v: %v", j, err)
		}
		if lv != tc.want {
			t.Errorf("unmarshal %v got %v want %v", tc.i, lv, tc.want)
		}
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	e.Emit(0, Info, time.Unix(0, 0).UTC(), "waitpid %d", 4)
	if len(tw.lines) != 1 {
		t.Fatalf("Emit wrote %d lines, expected 1", len(tw.lines))
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(strings.TrimSpace(tw.lines[0])), &got); err != nil {
		t.Fatalf("json.Unmarshal(%q) failed: %v", tw.lines[0], err)
	}
	if got.Msg != "waitpid 4" || got.Level != Info || got.File != "json_test.go" {
		t.Errorf("Emit got: %+v, expected message %q at level info from json_test.go", got, "waitpid 4")
	}
	if !got.Time.Equal(time.Unix(0, 0)) {
		t.Errorf("Emit time got: %v, expected: %v", got.Time, time.Unix(0, 0).UTC())
	}
	if got.Line == 0 {
		t.Errorf("Emit did not record the caller's line")
	}
}

func TestJSONEmitterTaskFields(t *testing.T) {
	for _, tc := range []struct {
		name    string
		msg     string
		wantMsg string
		wantPID *int32
		wantTID *int32
	}{
		{name: "task", msg: "pid[3] tid[1] exit -2", wantMsg: "exit -2", wantPID: ptr(3), wantTID: ptr(1)},
		{name: "process", msg: "pid[0] reaped", wantMsg: "reaped", wantPID: ptr(0)},
		{name: "none", msg: "boot", wantMsg: "boot"},
		{name: "malformed", msg: "pid[x] boot", wantMsg: "pid[x] boot"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tw := &testWriter{}
			JSONEmitter{&Writer{Next: tw}}.Emit(0, Debug, time.Unix(0, 0), "%s", tc.msg)
			var got jsonLog
			if err := json.Unmarshal([]byte(strings.TrimSpace(tw.lines[0])), &got); err != nil {
				t.Fatalf("json.Unmarshal(%q) failed: %v", tw.lines[0], err)
			}
			if got.Msg != tc.wantMsg {
				t.Errorf("msg got: %q, expected: %q", got.Msg, tc.wantMsg)
			}
			if diff := cmp.Diff(tc.wantPID, got.PID); diff != "" {
				t.Errorf("pid mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantTID, got.TID); diff != "" {
				t.Errorf("tid mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr(v int32) *int32 { return &v }
