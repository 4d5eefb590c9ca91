// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package fdtable implements the per-process descriptor table and the file
// syscall layer built on top of it (spec.md §3 "Descriptor table", §4.3).
// Slot allocation follows the same "find a gap, else append/reject" shape
// as samples/memfs's directory-entry allocator (inode.AddChild), scanning
// for the lowest empty slot rather than growing unboundedly, since
// OPEN_MAX is a fixed ceiling rather than memfs's open-ended entries slice.
package fdtable

import (
	"sync"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/ofile"
	"github.com/jacobsa/kernsim/vfscontract"
)

// Table is a fixed-size vector of OPEN_MAX slots, each empty or holding a
// shared reference to an open-file object.
type Table struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	slots []*ofile.File
}

// New creates a descriptor table with the given fixed capacity (OPEN_MAX).
func New(size int) *Table {
	return &Table{slots: make([]*ofile.File, size)}
}

func (t *Table) checkRange(fd int) error {
	if fd < 0 || fd >= len(t.slots) {
		return kerrno.EBADF
	}
	return nil
}

// lowestFree returns the lowest empty slot index, or EMFILE if full.
//
// LOCKS_REQUIRED(t.mu)
func (t *Table) lowestFree() (int, error) {
	for i, s := range t.slots {
		if s == nil {
			return i, nil
		}
	}
	return 0, kerrno.EMFILE
}

// Get returns the object installed at fd, validating range and
// non-emptiness (spec.md §4.3 "Validate fd").
func (t *Table) Get(fd int) (*ofile.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRange(fd); err != nil {
		return nil, err
	}
	obj := t.slots[fd]
	if obj == nil {
		return nil, kerrno.EBADF
	}
	return obj, nil
}

// Install places obj at the lowest free descriptor and returns it.
func (t *Table) Install(obj *ofile.File) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd, err := t.lowestFree()
	if err != nil {
		return 0, err
	}
	t.slots[fd] = obj
	return fd, nil
}

// InstallAt places obj at exactly fd, which must currently be empty. Used
// for console bootstrap (spec.md §4.3) where descriptors 0/1/2 must land at
// fixed indices rather than the lowest-free index.
func (t *Table) InstallAt(fd int, obj *ofile.File) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRange(fd); err != nil {
		return err
	}
	if t.slots[fd] != nil {
		panic("InstallAt on a non-empty slot")
	}
	t.slots[fd] = obj
	return nil
}

// detach empties slot fd and returns what was there, or EBADF if fd was
// already empty or out of range. Detaching happens before the refcount
// decrement in Close/Dup2, so that no other caller can re-observe the
// descriptor after the object has potentially been released (spec.md
// §4.3 "close" ordering note).
func (t *Table) detach(fd int) (*ofile.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRange(fd); err != nil {
		return nil, err
	}
	obj := t.slots[fd]
	if obj == nil {
		return nil, kerrno.EBADF
	}
	t.slots[fd] = nil
	return obj, nil
}

// Close detaches fd and releases its object (spec.md §4.3 "close").
func (t *Table) Close(fd int) error {
	obj, err := t.detach(fd)
	if err != nil {
		return err
	}
	obj.Release()
	return nil
}

// CloseAll closes every non-empty slot, in ascending order, for process
// exit (spec.md §4.6 step 2).
func (t *Table) CloseAll() {
	t.mu.Lock()
	n := len(t.slots)
	t.mu.Unlock()

	for fd := 0; fd < n; fd++ {
		_ = t.Close(fd)
	}
}

// Dup2 makes newfd reference the same open-file object as oldfd (spec.md
// §4.3 "dup2"). If newfd is already occupied it is closed first, with the
// same detach-then-release ordering as Close.
func (t *Table) Dup2(oldfd, newfd int) (int, error) {
	if err := t.checkRange(oldfd); err != nil {
		return 0, err
	}
	if err := t.checkRange(newfd); err != nil {
		return 0, err
	}

	src, err := t.Get(oldfd)
	if err != nil {
		return 0, err
	}

	if oldfd == newfd {
		return newfd, nil
	}

	if _, err := t.Get(newfd); err == nil {
		if err := t.Close(newfd); err != nil {
			return 0, err
		}
	}

	src.Acquire()

	t.mu.Lock()
	t.slots[newfd] = src
	t.mu.Unlock()

	return newfd, nil
}

// Clone installs, at every index the source table has occupied, a shared
// reference to the same open-file object (acquiring it), for the fork
// engine's descriptor-sharing step (spec.md §4.4 step 4). The receiver must
// be a freshly created, empty table.
func (t *Table) Clone(src *Table) {
	src.mu.Lock()
	defer src.mu.Unlock()

	for fd, obj := range src.slots {
		if obj == nil {
			continue
		}
		obj.Acquire()
		t.slots[fd] = obj
	}
}

// Open implements sys_open (spec.md §4.3): validates path and flags, opens
// through vfs, allocates an open-file object, and installs it at the
// lowest free descriptor.
func Open(
	t *Table,
	vfs vfscontract.VFS,
	cwd vfscontract.File,
	path string,
	flags vfscontract.OpenFlags,
	mode uint32,
	pathMax int,
) (int, error) {
	if path == "" {
		return 0, kerrno.EINVAL
	}
	if len(path) > pathMax {
		return 0, kerrno.EINVAL
	}
	if _, err := flags.AccessMode(); err != nil {
		return 0, err
	}
	if flags&vfscontract.OAPPEND != 0 && !flags.Writable() {
		return 0, kerrno.EINVAL
	}

	vnode, err := vfs.Open(cwd, path, flags, mode)
	if err != nil {
		return 0, err
	}

	var offset int64
	if flags&vfscontract.OAPPEND != 0 {
		st, err := vnode.Stat()
		if err != nil {
			vnode.DecRef()
			return 0, err
		}
		offset = st.Size
	}

	obj := ofile.New(vnode, flags, offset)

	fd, err := t.Install(obj)
	if err != nil {
		obj.Release()
		return 0, err
	}

	return fd, nil
}

// Read implements sys_read for a non-console descriptor.
func Read(t *Table, fd int, buf []byte) (int, error) {
	if buf == nil {
		return 0, kerrno.EFAULT
	}
	obj, err := t.Get(fd)
	if err != nil {
		return 0, err
	}
	return obj.Read(buf)
}

// Write implements sys_write for a non-console descriptor.
func Write(t *Table, fd int, buf []byte) (int, error) {
	if buf == nil {
		return 0, kerrno.EFAULT
	}
	obj, err := t.Get(fd)
	if err != nil {
		return 0, err
	}
	return obj.Write(buf)
}

// Lseek implements sys_lseek (spec.md §4.3, §4.2).
func Lseek(t *Table, fd int, pos int64, whence vfscontract.Whence) (int64, error) {
	obj, err := t.Get(fd)
	if err != nil {
		return 0, err
	}
	return obj.Seek(pos, whence)
}
