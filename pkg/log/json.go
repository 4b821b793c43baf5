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
	"fmt"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type jsonLog struct {
	Msg   string    `json:"msg"`
	Level Level     `json:"level"`
	Time  time.Time `json:"time"`
	PID   *int32    `json:"pid,omitempty"`
	TID   *int32    `json:"tid,omitempty"`
	File  string    `json:"file,omitempty"`
	Line  int       `json:"line,omitempty"`
}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	switch l {
	case Warning, Info, Debug:
		return json.Marshal(strings.ToLower(l.String()))
	default:
		return nil, fmt.Errorf("unknown level %v", l)
	}
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. It accepts both
// level names and integers.
func (l *Level) UnmarshalJSON(b []byte) error {
	switch s := string(b); s {
	case "0", `"warning"`:
		*l = Warning
	case "1", `"info"`:
		*l = Info
	case "2", `"debug"`:
		*l = Debug
	default:
		return fmt.Errorf("unknown level %q", s)
	}
	return nil
}

// taskField parses a leading "name[n] " from s.
func taskField(s, name string) (int32, string, bool) {
	rest, ok := strings.CutPrefix(s, name+"[")
	if !ok {
		return 0, s, false
	}
	num, rest, ok := strings.Cut(rest, "] ")
	if !ok {
		return 0, s, false
	}
	n, err := strconv.ParseInt(num, 10, 32)
	if err != nil {
		return 0, s, false
	}
	return int32(n), rest, true
}

// JSONEmitter logs messages in json format. A leading "pid[n] tid[m] "
// task prefix is moved out of the message into the pid and tid fields.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	j := jsonLog{
		Msg:   fmt.Sprintf(format, v...),
		Level: level,
		Time:  timestamp,
	}
	if pid, rest, ok := taskField(j.Msg, "pid"); ok {
		j.PID, j.Msg = &pid, rest
		if tid, rest, ok := taskField(j.Msg, "tid"); ok {
			j.TID, j.Msg = &tid, rest
		}
	}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		j.File = path.Base(file)
		j.Line = line
	}
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	e.Writer.Write(append(b, '\n'))
}
