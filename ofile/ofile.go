// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package ofile implements the open-file object of spec.md §3/§4.2: a
// shared, reference-counted handle wrapping a VFS file, an access mode, a
// byte offset, and a per-object mutex. Many descriptor-table slots may
// reference the same *File; the last Release destroys it.
//
// This plays the role the teacher's fuseops.HandleID-keyed file handles
// play for OpenFileOp/ReleaseFileHandleOp, generalized to explicit
// refcounting since, unlike a FUSE handle (owned by exactly one open()
// from the kernel's point of view), an open-file object here is shared
// across dup2 and fork.
package ofile

import (
	"fmt"
	"sync"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
)

// File is a shared open-file object (spec.md §3 "Open-file object").
type File struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	vnode    vfscontract.File // nil after the last Release
	mode     vfscontract.OpenFlags
	offset   int64
	refcount int // >= 1 while live
}

// New creates an open-file object with refcount 1, wrapping vnode.
func New(vnode vfscontract.File, mode vfscontract.OpenFlags, initialOffset int64) *File {
	return &File{
		vnode:    vnode,
		mode:     mode,
		offset:   initialOffset,
		refcount: 1,
	}
}

// Acquire increments the refcount, for a new descriptor-table slot sharing
// this object (dup2, fork).
func (f *File) Acquire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refcount++
}

// Release decrements the refcount; if it reaches zero, the VFS handle is
// released and the object destroyed (spec.md §4.2).
func (f *File) Release() {
	f.mu.Lock()
	f.refcount--
	if f.refcount < 0 {
		panic("open-file object refcount went negative")
	}
	destroyed := f.refcount == 0
	vnode := f.vnode
	if destroyed {
		f.vnode = nil
	}
	f.mu.Unlock()

	if destroyed {
		vnode.DecRef()
	}
}

func (f *File) checkNotDestroyed() {
	if f.vnode == nil {
		panic("use of open-file object after its last Release")
	}
}

// Read performs a read through the object, serialized by its mutex so that
// concurrent reads/writes through distinct descriptors sharing this object
// observe well-ordered offsets (spec.md §4.2, §5).
func (f *File) Read(p []byte) (int, error) {
	if !f.mode.Readable() {
		return 0, kerrno.EBADF
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkNotDestroyed()

	n, err := f.vnode.ReadAt(p, f.offset)
	if err != nil {
		return 0, err
	}
	f.offset += int64(n)
	return n, nil
}

// Write performs a write through the object; see Read for ordering.
func (f *File) Write(p []byte) (int, error) {
	if !f.mode.Writable() {
		return 0, kerrno.EBADF
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkNotDestroyed()

	n, err := f.vnode.WriteAt(p, f.offset)
	if err != nil {
		return 0, err
	}
	f.offset += int64(n)
	return n, nil
}

// Seek computes and commits a new absolute offset (spec.md §4.2). Per the
// §9 open question, the new offset must be written last, under the lock —
// there is no output parameter written before the lock is taken here.
func (f *File) Seek(pos int64, whence vfscontract.Whence) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkNotDestroyed()

	if !f.vnode.Seekable() {
		return 0, kerrno.ESPIPE
	}

	var base int64
	switch whence {
	case vfscontract.SeekSet:
		base = 0
	case vfscontract.SeekCur:
		base = f.offset
	case vfscontract.SeekEnd:
		st, err := f.vnode.Stat()
		if err != nil {
			return 0, err
		}
		base = st.Size
	default:
		return 0, kerrno.EINVAL
	}

	newOff := base + pos
	if newOff < 0 {
		return 0, kerrno.EINVAL
	}

	f.offset = newOff
	return newOff, nil
}

// Offset returns the object's current offset, for tests asserting on
// post-dup2 shared-offset behavior (spec.md §8).
func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Mode returns the object's access mode.
func (f *File) Mode() vfscontract.OpenFlags {
	return f.mode
}

func (f *File) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("ofile.File{mode=%v offset=%d refcount=%d}", f.mode, f.offset, f.refcount)
}
