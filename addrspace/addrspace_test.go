// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package addrspace_test

import (
	"testing"

	"github.com/jacobsa/kernsim/addrspace"
	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
)

func TestAddrspace(t *testing.T) { RunTests(t) }

type AddrspaceTest struct {
	vfs  vfscontract.VFS
	root vfscontract.File
}

func init() { RegisterTestSuite(&AddrspaceTest{}) }

func (t *AddrspaceTest) SetUp(ti *TestInfo) {
	t.vfs = vfscontract.NewMemVFS(timeutil.RealClock())
	root, err := t.vfs.Root()
	AssertEq(nil, err)
	t.root = root
}

func (t *AddrspaceTest) writeImage(name string, contents []byte) vfscontract.File {
	f, err := t.vfs.Open(t.root, name, vfscontract.OWRONLY|vfscontract.OCREAT, 0755)
	AssertEq(nil, err)
	_, err = f.WriteAt(contents, 0)
	AssertEq(nil, err)
	return f
}

func (t *AddrspaceTest) LoadELFThenCopyInReturnsImageBytes() {
	image := t.writeImage("a.out", []byte("fake-elf-contents"))

	as := addrspace.Create()
	entry, err := addrspace.LoadELF(as, image)
	AssertEq(nil, err)

	buf := make([]byte, len("fake-elf-contents"))
	AssertEq(nil, as.CopyInBytes(entry, buf))
	ExpectEq("fake-elf-contents", string(buf))
}

func (t *AddrspaceTest) CopyOutThenCopyInRoundTripsThroughStack() {
	as := addrspace.Create()
	sp, err := as.DefineStack()
	AssertEq(nil, err)

	addr := sp - 64
	AssertEq(nil, as.CopyOutBytes(addr, []byte("round trip")))

	buf := make([]byte, len("round trip"))
	AssertEq(nil, as.CopyInBytes(addr, buf))
	ExpectEq("round trip", string(buf))
}

func (t *AddrspaceTest) CopyInStringStopsAtNUL() {
	as := addrspace.Create()
	sp, err := as.DefineStack()
	AssertEq(nil, err)

	addr := sp - 64
	AssertEq(nil, as.CopyOutBytes(addr, []byte("hello\x00garbage")))

	s, err := as.CopyInString(addr, 1024)
	AssertEq(nil, err)
	ExpectEq("hello", s)
}

func (t *AddrspaceTest) CopyInStringWithoutNULWithinMaxLenFails() {
	as := addrspace.Create()
	sp, err := as.DefineStack()
	AssertEq(nil, err)

	addr := sp - 64
	AssertEq(nil, as.CopyOutBytes(addr, []byte("no-terminator-here")))

	_, err = as.CopyInString(addr, 4)
	ExpectTrue(kerrno.Is(err, kerrno.E2BIG))
}

func (t *AddrspaceTest) CopyOutOfBoundsFaults() {
	as := addrspace.Create()
	_, err := as.DefineStack()
	AssertEq(nil, err)

	err = as.CopyOutBytes(addrspace.UserAddr(0), []byte("x"))
	ExpectTrue(kerrno.Is(err, kerrno.EFAULT))
}

func (t *AddrspaceTest) CopyDuplicatesImageAndStackIndependently() {
	image := t.writeImage("a.out", []byte("original"))
	parent := addrspace.Create()
	_, err := addrspace.LoadELF(parent, image)
	AssertEq(nil, err)
	sp, err := parent.DefineStack()
	AssertEq(nil, err)
	AssertEq(nil, parent.CopyOutBytes(sp-8, []byte("parent-s")))

	child, err := parent.Copy()
	AssertEq(nil, err)

	AssertEq(nil, child.CopyOutBytes(sp-8, []byte("child--s")))

	buf := make([]byte, 8)
	AssertEq(nil, parent.CopyInBytes(sp-8, buf))
	ExpectEq("parent-s", string(buf))

	AssertEq(nil, child.CopyInBytes(sp-8, buf))
	ExpectEq("child--s", string(buf))
}

func (t *AddrspaceTest) DestroyOfActiveAddressSpacePanics() {
	as := addrspace.Create()
	as.Activate()

	defer func() {
		r := recover()
		ExpectThat(r, Not(Equals(nil)))
	}()
	as.Destroy()
}

func (t *AddrspaceTest) DoubleDestroyPanics() {
	as := addrspace.Create()
	as.Destroy()

	defer func() {
		r := recover()
		ExpectThat(r, Not(Equals(nil)))
	}()
	as.Destroy()
}

func (t *AddrspaceTest) DeactivateThenDestroyDoesNotPanic() {
	as := addrspace.Create()
	as.Activate()
	as.Deactivate()
	as.Destroy()
}
