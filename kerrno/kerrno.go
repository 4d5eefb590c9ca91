// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package kerrno defines the error taxonomy surfaced across the kernel's
// syscall boundary (see spec.md §7). Every error a syscall can return is a
// kerrno.Errno wrapping a positive errno value, or a pass-through VFS error.
package kerrno

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Errno is a kernel error number. Syscall-layer functions return it as the
// non-nil error of their (result, error) pair; the error itself marks the
// failure, and the result returned beside it carries no meaning.
type Errno unix.Errno

func (e Errno) Error() string {
	return unix.Errno(e).Error()
}

// Errors corresponding to kernel error numbers. These are treated specially
// by syscall-layer callers the way the teacher's errors.go treats EIO,
// ENOENT, and friends as first-class sentinels.
const (
	// Argument errors.
	EINVAL = Errno(unix.EINVAL) // bad flags, bad whence, negative seek, empty path
	EFAULT = Errno(unix.EFAULT) // user-memory fault in copy-in/out

	// Resource errors.
	ENOMEM = Errno(unix.ENOMEM) // out of kernel memory
	EMFILE = Errno(unix.EMFILE) // too many open files (descriptor table full)
	ENPROC = Errno(unix.ENPROC) // no free PID

	// Identity errors.
	ESRCH  = Errno(unix.ESRCH)  // no such process
	ECHILD = Errno(unix.ECHILD) // not a child of the caller

	// Access errors.
	EBADF = Errno(unix.EBADF) // wrong mode for operation, or bad fd

	// Size errors.
	E2BIG = Errno(unix.E2BIG) // argument list or individual string too large

	// Seek errors.
	ESPIPE = Errno(unix.ESPIPE) // lseek on a non-seekable object

	ENOENT = Errno(unix.ENOENT) // no such file or directory (VFS pass-through)
	EEXIST = Errno(unix.EEXIST)
	ENOTDIR = Errno(unix.ENOTDIR)
	EISDIR  = Errno(unix.EISDIR)
	ENOSPC  = Errno(unix.ENOSPC)
	EIO     = Errno(unix.EIO)
)

// Is reports whether err is the kernel errno value target, looking through
// a wrapped VFS error the way VOP_* pass-through errors are compared in
// file_syscalls.c.
func Is(err error, target Errno) bool {
	var e Errno
	return errors.As(err, &e) && e == target
}
