// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc

import (
	"github.com/jacobsa/kernsim/addrspace"
	"github.com/jacobsa/kernsim/fdtable"
	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
)

// Open implements sys_open (spec.md §4.3). pathAddr is a userptr_t: it is
// copied in through p's address space rather than taken as a Go string, so
// a NULL/unmapped pointer surfaces as kerrno.EFAULT distinctly from an
// empty string surfacing as kerrno.EINVAL (spec.md §8), matching
// file_syscalls.c's sys_open (NULL check, then copyinstr).
func (k *Kernel) Open(p *PCB, pathAddr addrspace.UserAddr, flags vfscontract.OpenFlags, mode uint32) (int, error) {
	if pathAddr == 0 {
		k.logf("open(pid=%d, pathAddr=nil) = (-1, %v)", p.PID, kerrno.EFAULT)
		return -1, kerrno.EFAULT
	}

	path, err := p.AddressSpace().CopyInString(pathAddr, k.Config.PathMax)
	if err != nil {
		k.logf("open(pid=%d, pathAddr=%#x) = (-1, %v)", p.PID, pathAddr, err)
		return -1, err
	}

	fd, err := fdtable.Open(p.Files, k.VFS, p.Cwd(), path, flags, mode, k.Config.PathMax)
	k.logf("open(pid=%d, path=%q, flags=%v) = (%d, %v)", p.PID, path, flags, fd, err)
	return fd, err
}

// Close implements sys_close (spec.md §4.3).
func (k *Kernel) Close(p *PCB, fd int) error {
	err := p.Files.Close(fd)
	k.logf("close(pid=%d, fd=%d) = %v", p.PID, fd, err)
	return err
}

// Read implements sys_read (spec.md §4.3), including the console
// fallback for descriptors 0/1/2 that aren't present in the table.
func (k *Kernel) Read(p *PCB, fd int, buf []byte) (int, error) {
	if buf == nil {
		return 0, kerrno.EFAULT
	}

	obj, err := p.Files.Get(fd)
	if err != nil {
		if kerrno.Is(err, kerrno.EBADF) {
			if console, cerr := k.consoleFallback(fd); cerr == nil {
				return console.ReadAt(buf, 0)
			}
		}
		return 0, err
	}
	return obj.Read(buf)
}

// Write implements sys_write (spec.md §4.3), including the console
// fallback for descriptors 0/1/2 that aren't present in the table.
func (k *Kernel) Write(p *PCB, fd int, buf []byte) (int, error) {
	if buf == nil {
		return 0, kerrno.EFAULT
	}

	obj, err := p.Files.Get(fd)
	if err != nil {
		if kerrno.Is(err, kerrno.EBADF) {
			if console, cerr := k.consoleFallback(fd); cerr == nil {
				return console.WriteAt(buf, 0)
			}
		}
		return 0, err
	}
	return obj.Write(buf)
}

// Lseek implements sys_lseek (spec.md §4.3, §4.2). Per the §9 open
// question, the new offset is computed and written last, under the
// open-file object's mutex — see ofile.File.Seek.
func (k *Kernel) Lseek(p *PCB, fd int, pos int64, whence vfscontract.Whence) (int64, error) {
	return fdtable.Lseek(p.Files, fd, pos, whence)
}

// Dup2 implements sys_dup2 (spec.md §4.3).
func (k *Kernel) Dup2(p *PCB, oldfd, newfd int) (int, error) {
	return p.Files.Dup2(oldfd, newfd)
}

// Chdir implements sys_chdir (spec.md §4.3): copies the path in through p's
// address space, the same way Open and Execv do, so a NULL/unmapped
// pathAddr surfaces as kerrno.EFAULT distinctly from an empty string
// surfacing as kerrno.EINVAL.
func (k *Kernel) Chdir(p *PCB, pathAddr addrspace.UserAddr) error {
	if pathAddr == 0 {
		return kerrno.EFAULT
	}

	path, err := p.AddressSpace().CopyInString(pathAddr, k.Config.PathMax)
	if err != nil {
		return err
	}
	if path == "" {
		return kerrno.EINVAL
	}

	newCwd, err := k.VFS.Chdir(p.Cwd(), path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.cwd
	p.cwd = newCwd
	p.mu.Unlock()

	old.DecRef()
	return nil
}

// Getcwd implements __getcwd (spec.md §4.3): renders the cwd through a
// kernel-side buffer of buflen bytes and returns the rendered path, whose
// length is the number of bytes produced. Per
// SPEC_FULL.md's supplemented-features note, this always round-trips
// through the process's cwd handle directly rather than through its
// descriptor table, matching helpers.c's use of a kernel I/O handle.
func (k *Kernel) Getcwd(p *PCB, buflen int) (string, error) {
	buf := make([]byte, buflen)
	n, err := k.VFS.Getcwd(p.Cwd(), buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
