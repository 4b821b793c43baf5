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

import "fmt"

type prefixLogger struct {
	logger Logger
	prefix string
}

func (p *prefixLogger) Debugf(format string, v ...any) {
	p.logger.Debugf("%s%s", p.prefix, fmt.Sprintf(format, v...))
}

func (p *prefixLogger) Infof(format string, v ...any) {
	p.logger.Infof("%s%s", p.prefix, fmt.Sprintf(format, v...))
}

func (p *prefixLogger) Warningf(format string, v ...any) {
	p.logger.Warningf("%s%s", p.prefix, fmt.Sprintf(format, v...))
}

func (p *prefixLogger) IsLogging(level Level) bool {
	return p.logger.IsLogging(level)
}

// PrefixLogger returns a Logger that prepends prefix to every message before
// passing it to logger.
func PrefixLogger(logger Logger, prefix string) Logger {
	return &prefixLogger{logger: logger, prefix: prefix}
}
