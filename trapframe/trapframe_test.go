// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package trapframe_test

import (
	"testing"

	"github.com/jacobsa/kernsim/trapframe"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestTrapframe(t *testing.T) { RunTests(t) }

type TrapframeTest struct {
}

func init() { RegisterTestSuite(&TrapframeTest{}) }

func (t *TrapframeTest) SnapshotIsAnIndependentCopy() {
	orig := trapframe.Trapframe{PC: 100, V0: 1, V1: 2, A3: 0, SP: 0x7000}
	snap := orig.Snapshot()

	snap.PC = 200
	ExpectEq(uint64(100), orig.PC)
	ExpectEq(uint64(200), snap.PC)
}

func (t *TrapframeTest) AdvancePastSyscallMovesPCForward() {
	tf := trapframe.Trapframe{PC: 1000}
	tf.AdvancePastSyscall(4)
	ExpectEq(uint64(1004), tf.PC)
}

func (t *TrapframeTest) SetChildReturnZeroesReturnRegisters() {
	tf := trapframe.Trapframe{V0: 99, V1: 99, A3: 1}
	tf.SetChildReturn()
	ExpectEq(uint64(0), tf.V0)
	ExpectEq(uint64(0), tf.V1)
	ExpectEq(uint64(0), tf.A3)
}

func (t *TrapframeTest) SetParentReturnOnSuccessCarriesPID() {
	tf := trapframe.Trapframe{}
	tf.SetParentReturn(42, 0)
	ExpectEq(uint64(42), tf.V0)
	ExpectEq(uint64(0), tf.A3)
}

func (t *TrapframeTest) SetParentReturnOnErrorSetsA3() {
	tf := trapframe.Trapframe{}
	tf.SetParentReturn(0, 12)
	ExpectEq(uint64(12), tf.V0)
	ExpectEq(uint64(1), tf.A3)
}
