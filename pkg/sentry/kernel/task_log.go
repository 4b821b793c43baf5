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

package kernel

// Debugf logs a debug message prefixed with the task's identity.
func (t *Task) Debugf(fmt string, v ...any) {
	t.logger.Debugf(fmt, v...)
}

// Infof logs an informational message prefixed with the task's identity.
func (t *Task) Infof(fmt string, v ...any) {
	t.logger.Infof(fmt, v...)
}

// Warningf logs a warning prefixed with the task's identity.
func (t *Task) Warningf(fmt string, v ...any) {
	t.logger.Warningf(fmt, v...)
}
