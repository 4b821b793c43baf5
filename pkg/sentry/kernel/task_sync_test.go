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

import (
	"testing"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/kernel/locks"
)

// newSyncTask returns an unstarted task in a fresh process. Its sync calls
// may run on the test goroutine as long as they do not block.
func newSyncTask(t *testing.T) *Task {
	t.Helper()
	k := newTestKernel(t, nil)
	p := k.newProcess(nil, nil)
	task := k.newTask(p, hostarch.AddrRange{}, DefaultPriority)
	p.addTaskLocked(task)
	task.updateLogPrefix()
	return task
}

func TestSemaphoreDownRefusedWhenUnsafe(t *testing.T) {
	task := newSyncTask(t)
	task.EnableDeadlockDetect(true)
	id, err := task.SemaphoreCreate(1)
	if err != nil {
		t.Fatalf("SemaphoreCreate(1) failed: %v", err)
	}
	if err := task.SemaphoreDown(id); err != nil {
		t.Fatalf("first SemaphoreDown failed: %v", err)
	}
	// The only task holds the only unit and asks for another.
	if err := task.SemaphoreDown(id); !linuxerr.Equals(linuxerr.EDEADLK, err) {
		t.Fatalf("second SemaphoreDown got: %v, expected: EDEADLK", err)
	}
	if got := task.semNeed[id]; got != 0 {
		t.Errorf("need after refusal got: %d, expected: 0", got)
	}
	if err := task.SemaphoreUp(id); err != nil {
		t.Fatalf("SemaphoreUp failed: %v", err)
	}
	if err := task.SemaphoreDown(id); err != nil {
		t.Fatalf("SemaphoreDown after SemaphoreUp failed: %v", err)
	}
	if got := task.semAllocation[id]; got != 1 {
		t.Errorf("allocation got: %d, expected: 1", got)
	}
}

func TestSemaphoreDestroyClearsAccounting(t *testing.T) {
	task := newSyncTask(t)
	task.EnableDeadlockDetect(true)
	id, _ := task.SemaphoreCreate(1)
	if err := task.SemaphoreDown(id); err != nil {
		t.Fatalf("SemaphoreDown failed: %v", err)
	}
	// Held units do not keep a semaphore alive.
	if err := task.SemaphoreDestroy(id); err != nil {
		t.Fatalf("SemaphoreDestroy failed: %v", err)
	}
	if got := task.semAllocation[id]; got != 0 {
		t.Errorf("allocation after destroy got: %d, expected: 0", got)
	}
	reused, _ := task.SemaphoreCreate(1)
	if reused != id {
		t.Fatalf("SemaphoreCreate after destroy got id: %d, expected: %d", reused, id)
	}
	// A stale allocation would leave no units and refuse this.
	if err := task.SemaphoreDown(reused); err != nil {
		t.Errorf("SemaphoreDown on the reused slot failed: %v", err)
	}
	if err := task.SemaphoreDestroy(9); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("SemaphoreDestroy(9) got: %v, expected: EINVAL", err)
	}
}

func TestMutexRelockRefusedAndSlotReuse(t *testing.T) {
	for _, kind := range []locks.MutexKind{locks.SpinMutex, locks.BlockingMutex} {
		t.Run(kind.String(), func(t *testing.T) {
			task := newSyncTask(t)
			task.EnableDeadlockDetect(true)
			m0 := task.MutexCreate(kind)
			m1 := task.MutexCreate(kind)
			if m0 != 0 || m1 != 1 {
				t.Fatalf("MutexCreate ids got: %d, %d, expected: 0, 1", m0, m1)
			}
			if err := task.MutexLock(m0); err != nil {
				t.Fatalf("MutexLock failed: %v", err)
			}
			if err := task.MutexLock(m0); !linuxerr.Equals(linuxerr.EDEADLK, err) {
				t.Fatalf("second MutexLock got: %v, expected: EDEADLK", err)
			}
			if err := task.MutexDestroy(m0); !linuxerr.Equals(linuxerr.EBUSY, err) {
				t.Errorf("MutexDestroy of a held mutex got: %v, expected: EBUSY", err)
			}
			if err := task.MutexUnlock(m0); err != nil {
				t.Fatalf("MutexUnlock failed: %v", err)
			}
			if got := task.mutexAllocation[m0]; got != 0 {
				t.Errorf("allocation after lock and unlock got: %d, expected: 0", got)
			}
			if err := task.MutexDestroy(m0); err != nil {
				t.Fatalf("MutexDestroy failed: %v", err)
			}
			if got := task.MutexCreate(kind); got != m0 {
				t.Errorf("MutexCreate after destroy got: %d, expected: %d", got, m0)
			}
			if err := task.MutexLock(m0); err != nil {
				t.Errorf("MutexLock on the reused slot failed: %v", err)
			}
			if err := task.MutexLock(9); !linuxerr.Equals(linuxerr.EINVAL, err) {
				t.Errorf("MutexLock(9) got: %v, expected: EINVAL", err)
			}
		})
	}
}
