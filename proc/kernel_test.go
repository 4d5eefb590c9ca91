// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jacobsa/kernsim/addrspace"
	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/proc"
	"github.com/jacobsa/kernsim/vfscontract"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
)

// putPath writes s onto p's simulated user stack, the way a syscall stub
// would before trapping in, and returns the address to pass as a path
// argument to Kernel.Open/Kernel.Chdir.
func putPath(p *proc.PCB, s string) addrspace.UserAddr {
	addr, err := p.AddressSpace().PutCString(s)
	AssertEq(nil, err)
	return addr
}

func TestKernel(t *testing.T) { RunTests(t) }

type KernelTest struct {
	in  *strings.Reader
	out *bytes.Buffer
	errb *bytes.Buffer

	k *proc.Kernel
	p *proc.PCB
}

func init() { RegisterTestSuite(&KernelTest{}) }

func (t *KernelTest) SetUp(ti *TestInfo) {
	t.in = strings.NewReader("console input\n")
	t.out = new(bytes.Buffer)
	t.errb = new(bytes.Buffer)

	vfs := vfscontract.NewMemVFS(timeutil.RealClock())
	t.k = proc.NewKernel(vfs, proc.KernelConfig{}, t.in, t.out, t.errb)

	p, err := t.k.NewRootProcess("initproc")
	AssertEq(nil, err)
	t.p = p
}

func (t *KernelTest) RootProcessHasConsoleAtFDsZeroOneTwo() {
	ExpectEq(1, t.p.ThreadCount())

	n, err := t.k.Write(t.p, 1, []byte("hi"))
	AssertEq(nil, err)
	ExpectEq(2, n)
	ExpectEq("hi", t.out.String())

	buf := make([]byte, 4)
	n, err = t.k.Read(t.p, 0, buf)
	AssertEq(nil, err)
	ExpectEq("cons", string(buf[:n]))
}

func (t *KernelTest) OpenWriteReadCloseRoundTrips() {
	fd, err := t.k.Open(t.p, putPath(t.p, "greeting"), vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)

	_, err = t.k.Write(t.p, fd, []byte("hello kernel"))
	AssertEq(nil, err)
	AssertEq(nil, t.k.Close(t.p, fd))

	rfd, err := t.k.Open(t.p, putPath(t.p, "greeting"), vfscontract.ORDONLY, 0)
	AssertEq(nil, err)

	buf := make([]byte, 32)
	n, err := t.k.Read(t.p, rfd, buf)
	AssertEq(nil, err)
	ExpectEq("hello kernel", string(buf[:n]))
}

func (t *KernelTest) ReadAfterCloseFails() {
	fd, err := t.k.Open(t.p, putPath(t.p, "f"), vfscontract.ORDWR|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)
	AssertEq(nil, t.k.Close(t.p, fd))

	_, err = t.k.Read(t.p, fd, make([]byte, 1))
	ExpectTrue(kerrno.Is(err, kerrno.EBADF))
}

func (t *KernelTest) WriteWithNilBufferFaults() {
	fd, err := t.k.Open(t.p, putPath(t.p, "f"), vfscontract.OWRONLY|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)

	_, err = t.k.Write(t.p, fd, nil)
	ExpectTrue(kerrno.Is(err, kerrno.EFAULT))
}

func (t *KernelTest) Dup2MakesBothDescriptorsShareOffset() {
	fd, err := t.k.Open(t.p, putPath(t.p, "f"), vfscontract.ORDWR|vfscontract.OCREAT, 0644)
	AssertEq(nil, err)

	newfd, err := t.k.Dup2(t.p, fd, 9)
	AssertEq(nil, err)

	_, err = t.k.Write(t.p, fd, []byte("abc"))
	AssertEq(nil, err)

	off, err := t.k.Lseek(t.p, newfd, 0, vfscontract.SeekCur)
	AssertEq(nil, err)
	ExpectEq(3, off)
}

func (t *KernelTest) ChdirToEmptyPathIsRejectedThenGetcwdStillReportsRoot() {
	err := t.k.Chdir(t.p, putPath(t.p, ""))
	ExpectTrue(kerrno.Is(err, kerrno.EINVAL))

	cwd, err := t.k.Getcwd(t.p, 64)
	AssertEq(nil, err)
	ExpectEq("/", cwd)
}

func (t *KernelTest) ChdirToMissingDirectoryFails() {
	err := t.k.Chdir(t.p, putPath(t.p, "nonexistent"))
	ExpectTrue(kerrno.Is(err, kerrno.ENOENT))
}

func (t *KernelTest) ChdirWithNullPathFaults() {
	err := t.k.Chdir(t.p, addrspace.UserAddr(0))
	ExpectTrue(kerrno.Is(err, kerrno.EFAULT))
}

func (t *KernelTest) OpenWithNullPathFaults() {
	_, err := t.k.Open(t.p, addrspace.UserAddr(0), vfscontract.ORDONLY, 0)
	ExpectTrue(kerrno.Is(err, kerrno.EFAULT))
}

func (t *KernelTest) GetpidReturnsOwnPID() {
	ExpectEq(t.p.PID, t.k.Getpid(t.p))
}
