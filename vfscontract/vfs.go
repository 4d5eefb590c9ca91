// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package vfscontract defines the virtual-file-system collaborator that the
// process/file subsystem consumes (spec.md §6): it opens a path and returns
// a file handle, supports stat/read/write/seek and reference counting, and
// manages per-process current-working-directory handles. The subsystem
// itself never implements path resolution or on-disk storage; it only calls
// through this contract, the way the teacher's FileSystem implementations
// (samples/memfs et al.) are called through by a FUSE connection rather than
// embedding transport concerns.
//
// Implements-or-consumes: spec.md §6 "External interfaces the core
// consumes" — vfs_open, vfs_close, vfs_chdir, vfs_getcwd, VOP_READ,
// VOP_WRITE, VOP_STAT, VOP_ISSEEKABLE, VOP_INCREF, VOP_DECREF.
package vfscontract

import (
	"github.com/jacobsa/kernsim/kerrno"
)

// OpenFlags mirrors the access-mode and extra bits a syscall-layer open()
// must resolve per spec.md §4.3/§6.
type OpenFlags int

const (
	ORDONLY OpenFlags = 1 << iota
	OWRONLY
	ORDWR
	OAPPEND
	OCREAT
	OTRUNC

	accessModeMask = ORDONLY | OWRONLY | ORDWR
)

// AccessMode validates that exactly one of ORDONLY/OWRONLY/ORDWR is set and
// returns it, or kerrno.EINVAL per spec.md §4.3 "Validate access-mode bits".
func (f OpenFlags) AccessMode() (OpenFlags, error) {
	mode := f & accessModeMask
	switch mode {
	case ORDONLY, OWRONLY, ORDWR:
		return mode, nil
	default:
		return 0, kerrno.EINVAL
	}
}

func (f OpenFlags) Readable() bool {
	mode, err := f.AccessMode()
	return err == nil && (mode == ORDONLY || mode == ORDWR)
}

func (f OpenFlags) Writable() bool {
	mode, err := f.AccessMode()
	return err == nil && (mode == OWRONLY || mode == ORDWR)
}

// Whence selects the base an lseek resolves against; names match spec.md §6.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Stat is the subset of VOP_STAT this subsystem needs.
type Stat struct {
	Size int64
}

// File is a VFS file handle (a vnode, in OS/161 terms): the thing an
// open-file object (see package ofile) wraps. Offsets are supplied by the
// caller on every call rather than tracked by File itself, because spec.md
// assigns offset ownership to the open-file object, not to the VFS handle.
//
// Implementations must be safe for concurrent use; the subsystem serializes
// calls per open-file object via that object's own mutex (spec.md §4.2), not
// via File.
type File interface {
	ReadAt(p []byte, offset int64) (n int, err error)
	WriteAt(p []byte, offset int64) (n int, err error)
	Stat() (Stat, error)
	Seekable() bool

	// IncRef/DecRef implement VOP_INCREF/VOP_DECREF: reference counting on
	// the underlying vnode itself, independent of the open-file object's own
	// descriptor-table refcount. Used when a cwd handle is shared (fork) or
	// when a directory File backs a process's cwd.
	IncRef()
	DecRef()
}

// VFS is the external collaborator of spec.md §6. An in-memory reference
// implementation lives in this package (see NewMemVFS); production use
// would back it with a real on-disk filesystem.
type VFS interface {
	// Open resolves path relative to cwd (or absolutely, if path is rooted)
	// and returns a File with one reference already held on the caller's
	// behalf (matching vfs_open's implicit VOP_INCREF).
	Open(cwd File, path string, flags OpenFlags, mode uint32) (File, error)

	// Chdir resolves path relative to cwd and returns a new directory File
	// with one reference held, for the caller to install as its new cwd
	// (releasing the old one via File.DecRef).
	Chdir(cwd File, path string) (File, error)

	// Getcwd renders the absolute path of cwd into buf, returning the
	// number of bytes written.
	Getcwd(cwd File, buf []byte) (int, error)

	// Root returns the root directory File, with one reference held, for
	// bootstrapping the first process's cwd.
	Root() (File, error)
}
