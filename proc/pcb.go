// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc

import (
	"sync"

	"github.com/jacobsa/kernsim/addrspace"
	"github.com/jacobsa/kernsim/fdtable"
	"github.com/jacobsa/kernsim/vfscontract"
)

// PCB is the process control block of spec.md §3. Its pointer fields
// (address space, cwd) are guarded by a short mutex never held across I/O;
// its exit rendezvous state is guarded by a separate lock/condition-variable
// pair, matching spec.md §5 "Shared-resource policy".
type PCB struct {
	Name      string
	PID       PID
	ParentPID PID // -1 for the first user process

	Files *fdtable.Table

	// mu guards pointer mutations only (address space swap on exec, cwd swap
	// on chdir); it must never be held across a VFS call (spec.md §5).
	mu  sync.Mutex
	as  *addrspace.AddressSpace // GUARDED_BY(mu)
	cwd vfscontract.File        // GUARDED_BY(mu)

	threadMu    sync.Mutex
	threadCount int // GUARDED_BY(threadMu); >= 0

	waitMu   sync.Mutex
	waitCV   *sync.Cond
	exited   bool  // GUARDED_BY(waitMu)
	exitCode int32 // GUARDED_BY(waitMu); valid once exited
}

func newPCB(name string, pid, parentPID PID, openMax int) *PCB {
	p := &PCB{
		Name:      name,
		PID:       pid,
		ParentPID: parentPID,
		Files:     fdtable.New(openMax),
	}
	p.waitCV = sync.NewCond(&p.waitMu)
	return p
}

// AddressSpace returns the process's current address space handle.
func (p *PCB) AddressSpace() *addrspace.AddressSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.as
}

// Cwd returns the process's current working-directory handle.
func (p *PCB) Cwd() vfscontract.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// ThreadCount returns the number of live threads bound to p, for tests
// asserting spec.md §8's "thread_count >= 0 ... == 0 after exit" invariant.
func (p *PCB) ThreadCount() int {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()
	return p.threadCount
}

// Exited reports whether p has set its exit flag (spec.md §4.6).
func (p *PCB) Exited() bool {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.exited
}
