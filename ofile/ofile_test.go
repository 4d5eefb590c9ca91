// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package ofile_test

import (
	"testing"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/ofile"
	"github.com/jacobsa/kernsim/vfscontract"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
)

func TestOFile(t *testing.T) { RunTests(t) }

type OFileTest struct {
	vfs  vfscontract.VFS
	root vfscontract.File
}

func init() { RegisterTestSuite(&OFileTest{}) }

func (t *OFileTest) SetUp(ti *TestInfo) {
	t.vfs = vfscontract.NewMemVFS(timeutil.RealClock())
	root, err := t.vfs.Root()
	AssertEq(nil, err)
	t.root = root
}

func (t *OFileTest) openVnode(name string, flags vfscontract.OpenFlags) vfscontract.File {
	v, err := t.vfs.Open(t.root, name, flags, 0644)
	AssertEq(nil, err)
	return v
}

func (t *OFileTest) WriteThenSeekThenReadRoundTrips() {
	v := t.openVnode("f", vfscontract.ORDWR|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.ORDWR, 0)

	n, err := f.Write([]byte("Hello, OS/161 read test!\n"))
	AssertEq(nil, err)
	ExpectEq(25, n)

	off, err := f.Seek(0, vfscontract.SeekSet)
	AssertEq(nil, err)
	ExpectEq(0, off)

	buf := make([]byte, 25)
	n, err = f.Read(buf)
	AssertEq(nil, err)
	ExpectEq(25, n)
	ExpectEq("Hello, OS/161 read test!\n", string(buf))
}

func (t *OFileTest) SeekEndReturnsVFSSize() {
	v := t.openVnode("f", vfscontract.OWRONLY|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.OWRONLY, 0)

	_, err := f.Write([]byte("0123456789"))
	AssertEq(nil, err)

	off, err := f.Seek(0, vfscontract.SeekEnd)
	AssertEq(nil, err)
	ExpectEq(10, off)
}

func (t *OFileTest) NegativeResolvedOffsetIsRejected() {
	v := t.openVnode("f", vfscontract.ORDWR|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.ORDWR, 0)

	_, err := f.Seek(-1, vfscontract.SeekSet)
	ExpectTrue(kerrno.Is(err, kerrno.EINVAL))
}

func (t *OFileTest) WriteOnlyObjectRejectsRead() {
	v := t.openVnode("f", vfscontract.OWRONLY|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.OWRONLY, 0)

	_, err := f.Read(make([]byte, 1))
	ExpectTrue(kerrno.Is(err, kerrno.EBADF))
}

func (t *OFileTest) ReadOnlyObjectRejectsWrite() {
	v := t.openVnode("f", vfscontract.ORDONLY|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.ORDONLY, 0)

	_, err := f.Write([]byte("x"))
	ExpectTrue(kerrno.Is(err, kerrno.EBADF))
}

func (t *OFileTest) AcquireThenTwoReleasesDestroysExactlyOnce() {
	v := t.openVnode("f", vfscontract.ORDWR|vfscontract.OCREAT)
	f := ofile.New(v, vfscontract.ORDWR, 0)

	f.Acquire()

	// Acquire took a second reference, so the first of two Releases must
	// leave f still usable rather than destroyed.
	_, err := f.Write([]byte("x"))
	AssertEq(nil, err)
	f.Release()

	_, err = f.Write([]byte("y"))
	ExpectEq(nil, err)
	f.Release()

	defer func() {
		r := recover()
		ExpectThat(r, Not(Equals(nil)))
	}()
	f.Release()
}
