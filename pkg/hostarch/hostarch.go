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

// Package hostarch contains address and access definitions for the simulated
// machine: page geometry, user addresses and memory access types.
package hostarch

const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the page size.
	PageSize = 1 << PageShift

	// MaxUserAddr is the exclusive upper bound of user addresses. No user
	// mapping may extend past it.
	MaxUserAddr Addr = 1 << 32
)

// PageRoundDown returns x rounded down to the nearest multiple of PageSize.
func PageRoundDown(x uint64) uint64 {
	return x &^ (PageSize - 1)
}

// PageRoundUp returns x rounded up to the nearest multiple of PageSize. ok is
// true iff rounding up does not overflow the range of uint64.
func PageRoundUp(x uint64) (val uint64, ok bool) {
	val = PageRoundDown(x + PageSize - 1)
	ok = val >= x
	return
}
