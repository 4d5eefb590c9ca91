// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package kerrno_test

import (
	"testing"

	"github.com/jacobsa/kernsim/kerrno"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestKerrno(t *testing.T) { RunTests(t) }

type KerrnoTest struct {
}

func init() { RegisterTestSuite(&KerrnoTest{}) }

func (t *KerrnoTest) ErrorStringsAreNonEmpty() {
	for _, e := range []kerrno.Errno{
		kerrno.EINVAL, kerrno.EFAULT, kerrno.ENOMEM, kerrno.EMFILE,
		kerrno.ENPROC, kerrno.ESRCH, kerrno.ECHILD, kerrno.EBADF,
		kerrno.E2BIG, kerrno.ESPIPE, kerrno.ENOENT,
	} {
		ExpectThat(e.Error(), Not(Equals("")))
	}
}

func (t *KerrnoTest) IsMatchesSameErrno() {
	var err error = kerrno.EBADF
	ExpectTrue(kerrno.Is(err, kerrno.EBADF))
	ExpectFalse(kerrno.Is(err, kerrno.ESRCH))
}

func (t *KerrnoTest) IsRejectsNonErrno() {
	ExpectFalse(kerrno.Is(nil, kerrno.EBADF))
}
