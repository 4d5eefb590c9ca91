// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc

import (
	"github.com/jacobsa/kernsim/kthread"
	"github.com/jacobsa/kernsim/trapframe"
)

// Fork implements the fork engine of spec.md §4.4: it duplicates parent's
// PCB into a fresh child, shares descriptors and cwd, snapshots tf, and
// launches a kernel thread bound to the child.
//
// childMain, if non-nil, stands in for "enter user mode": a real kernel
// jumps back into the trapped syscall instruction's caller with a patched
// trapframe; since the trap layer and user-space dispatcher are out of
// scope (spec.md §1), this simulation instead invokes childMain on the
// forked goroutine as the child's user-mode program. A nil childMain models
// a child whose thread exists but never runs anything (and so never exits);
// this is never useful outside of a test exercising Fork in isolation.
func (k *Kernel) Fork(parent *PCB, tf trapframe.Trapframe, childMain func(child *PCB)) (pid PID, err error) {
	report := k.trace("Fork")
	defer func() { report(err) }()

	childPID, err := k.Registry.Allocate()
	if err != nil {
		return 0, err
	}

	child := newPCB(parent.Name, childPID, parent.PID, k.Config.OpenMax)

	parentAS := parent.AddressSpace()
	parentCwd := parent.Cwd()

	childAS, err := parentAS.Copy()
	if err != nil {
		// Step 2 failure: release the PCB by abandoning its reserved PID.
		// Go's value-copy AddressSpace.Copy has no real failure mode; this
		// path exists for parity with spec.md §4.4's enumerated failure
		// points.
		k.Registry.Abandon(childPID)
		return 0, err
	}

	// Step 3: share the cwd, incrementing its VFS refcount.
	parentCwd.IncRef()

	child.mu.Lock()
	child.as = childAS
	child.cwd = parentCwd
	child.mu.Unlock()

	// Step 4: share each open-file object, acquiring a reference per slot.
	// Per spec.md §9's resolution, the child's table starts empty (no
	// console bootstrap) and is populated purely by this clone.
	child.Files.Clone(parent.Files)

	// Step 5: snapshot the trapframe by value, patched for the child.
	childTF := tf.Snapshot()
	childTF.SetChildReturn()
	childTF.AdvancePastSyscall(4)

	child.threadMu.Lock()
	child.threadCount = 1
	child.threadMu.Unlock()

	k.Registry.Install(childPID, child)

	// Step 6: fork a kernel thread that activates the child's address space
	// and enters "user mode" at the post-syscall instruction.
	kthread.Fork(func() {
		childAS.Activate()
		if childMain != nil {
			childMain(child)
		}
	})

	k.logf("fork(pid=%d) = %d", parent.PID, childPID)
	return childPID, nil
}
