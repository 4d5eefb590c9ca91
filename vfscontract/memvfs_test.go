// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package vfscontract_test

import (
	"testing"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
)

func TestMemVFS(t *testing.T) { RunTests(t) }

type MemVFSTest struct {
	fs   vfscontract.VFS
	root vfscontract.File
}

func init() { RegisterTestSuite(&MemVFSTest{}) }

func (t *MemVFSTest) SetUp(ti *TestInfo) {
	t.fs = vfscontract.NewMemVFS(timeutil.RealClock())

	root, err := t.fs.Root()
	AssertEq(nil, err)
	t.root = root
}

func (t *MemVFSTest) WriteThenReadRoundTrips() {
	f, err := t.fs.Open(t.root, "f", vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)

	n, err := f.WriteAt([]byte("hello"), 0)
	AssertEq(nil, err)
	AssertEq(5, n)

	buf := make([]byte, 5)
	n, err = f.ReadAt(buf, 0)
	AssertEq(nil, err)
	ExpectEq(5, n)
	ExpectEq("hello", string(buf))
}

func (t *MemVFSTest) OpenWithoutCreateOnMissingPathFails() {
	_, err := t.fs.Open(t.root, "nope", vfscontract.ORDONLY, 0)
	ExpectTrue(kerrno.Is(err, kerrno.ENOENT))
}

func (t *MemVFSTest) TruncateClearsContents() {
	f, err := t.fs.Open(t.root, "f", vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)
	_, err = f.WriteAt([]byte("hello"), 0)
	AssertEq(nil, err)

	f2, err := t.fs.Open(t.root, "f", vfscontract.OWRONLY|vfscontract.OTRUNC, 0644)
	AssertEq(nil, err)

	st, err := f2.Stat()
	AssertEq(nil, err)
	ExpectEq(0, st.Size)
}

func (t *MemVFSTest) StatReflectsSize() {
	f, err := t.fs.Open(t.root, "f", vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)
	_, err = f.WriteAt([]byte("hello world"), 0)
	AssertEq(nil, err)

	st, err := f.Stat()
	AssertEq(nil, err)
	ExpectEq(11, st.Size)
}

func (t *MemVFSTest) RefcountDestroysOnLastDecRef() {
	f, err := t.fs.Open(t.root, "f", vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)

	// One ref from Open. DecRef to zero should not panic.
	f.DecRef()
}
