// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package proc implements the core of the process/file subsystem:
// the PID registry, process control block, and the fork/exec/wait
// lifecycle built over them (spec.md §3, §4.1, §4.4–§4.6).
package proc

import (
	"sync"

	"github.com/jacobsa/kernsim/kerrno"
)

// PID identifies a process. 0 is permanently reserved for the kernel.
type PID int32

// KernelPID is the reserved, never-reassigned slot for the kernel itself
// (spec.md §3 "PID registry").
const KernelPID PID = 0

// Registry is the fixed-size PID table of spec.md §4.1: a bounded
// associative store from PID to PCB, with a rotating allocation cursor.
// Allocation happens in two phases — Allocate reserves a PID under the
// registry's short mutex without yet knowing the PCB that will occupy it
// (construction may itself fail or block on the VFS), and Install commits
// the PCB into the reserved slot. This mirrors samples/memfs's
// allocateInode/deallocateInode free-list, generalized with a reservation
// step so that a concurrent Allocate can never hand out the same PID twice
// while a PCB is still under construction.
type Registry struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	slots    []*PCB
	reserved []bool
	cursor   int
}

// NewRegistry creates a registry with procMax user-PID slots (1..procMax),
// plus the reserved kernel slot 0.
func NewRegistry(procMax int) *Registry {
	return &Registry{
		slots:    make([]*PCB, procMax+1),
		reserved: make([]bool, procMax+1),
	}
}

// Allocate reserves and returns a free PID, starting the scan just after
// the last PID handed out (spec.md §4.1 "Allocation policy"). Returns
// kerrno.ENPROC if every slot is occupied or reserved.
func (r *Registry) Allocate() (PID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.slots) - 1
	for i := 0; i < n; i++ {
		pid := PID(1 + (r.cursor+i)%n)
		if r.slots[pid] == nil && !r.reserved[pid] {
			r.reserved[pid] = true
			r.cursor = int(pid)
			return pid, nil
		}
	}
	return 0, kerrno.ENPROC
}

// Install commits p into pid, which must have been returned by a prior
// Allocate and not yet Installed or Abandoned.
func (r *Registry) Install(pid PID, p *PCB) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid == KernelPID {
		panic("install into the reserved kernel slot")
	}
	if !r.reserved[pid] {
		panic("install without a matching prior Allocate")
	}
	r.slots[pid] = p
	r.reserved[pid] = false
}

// Abandon releases a PID reserved by Allocate without ever Installing a
// PCB into it, for fork/runprogram failure unwinding (spec.md §4.7).
func (r *Registry) Abandon(pid PID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reserved[pid] {
		panic("abandon of a PID that was not reserved")
	}
	r.reserved[pid] = false
}

// Remove deletes the PCB occupying pid, freeing the slot for reuse.
func (r *Registry) Remove(pid PID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid == KernelPID {
		panic("remove of the reserved kernel slot")
	}
	if r.slots[pid] == nil {
		panic("remove of an unoccupied PID slot")
	}
	r.slots[pid] = nil
}

// Lookup returns the PCB installed at pid, or nil if pid is out of range or
// unoccupied. The raw pointer is returned for callers to synchronize on
// externally (spec.md §4.1 "Concurrency").
func (r *Registry) Lookup(pid PID) *PCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid <= 0 || int(pid) >= len(r.slots) {
		return nil
	}
	return r.slots[pid]
}
