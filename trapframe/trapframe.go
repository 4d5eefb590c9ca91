// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package trapframe defines the trapframe value type of spec.md §6: a
// snapshot of user-mode CPU state captured at kernel entry, copied by value
// into a child on fork. It plays the role the teacher's small, by-value
// request/response structs in fuseops/ops.go play for marshalled kernel
// state — a plain struct whose only methods copy it and patch its fields.
package trapframe

// Trapframe is a snapshot of user-mode register state at kernel entry.
// Field names follow the MIPS-style calling convention spec.md §6 delegates
// to the thread layer: two return-value registers (V0, V1), an error flag
// (A3), and the saved program counter.
type Trapframe struct {
	PC  uint64
	V0  uint64
	V1  uint64
	A3  uint64 // non-zero signals "syscall failed" to user code
	SP  uint64
}

// Snapshot returns a by-value copy of tf, the way fork's step 5 heap-copies
// the caller's trapframe for the child (spec.md §4.4).
func (tf Trapframe) Snapshot() Trapframe {
	return tf
}

// AdvancePastSyscall moves PC past the syscall instruction that trapped
// into the kernel, matching the fork child's patched return path
// (spec.md §4.4 step 6). instrSize is the target's instruction width.
func (tf *Trapframe) AdvancePastSyscall(instrSize uint64) {
	tf.PC += instrSize
}

// SetChildReturn patches tf's return-value slots to indicate "this is the
// child, returning 0" (spec.md §4.4 step 6).
func (tf *Trapframe) SetChildReturn() {
	tf.V0 = 0
	tf.V1 = 0
	tf.A3 = 0
}

// SetParentReturn patches tf's return-value slots to indicate the parent's
// view of fork's result: the child's pid, or an error.
func (tf *Trapframe) SetParentReturn(pid int32, errno uint64) {
	if errno != 0 {
		tf.V0 = errno
		tf.A3 = 1
		return
	}
	tf.V0 = uint64(pid)
	tf.A3 = 0
}
