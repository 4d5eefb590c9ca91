// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc

import (
	"encoding/binary"

	"github.com/jacobsa/kernsim/addrspace"
	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
)

const ptrSize = 8

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func alignDown(addr addrspace.UserAddr, align int) addrspace.UserAddr {
	return addr &^ addrspace.UserAddr(align-1)
}

// ExecResult carries what a real kernel would hand the trap layer to enter
// user mode at the new image's entry point (spec.md §6 "User-stack layout
// at execv entry"). Since the trap layer and user-space dispatcher are out
// of scope (spec.md §1), Execv returns this rather than never returning;
// the caller is responsible for simulating entry.
type ExecResult struct {
	Argc      int
	ArgvAddr  addrspace.UserAddr
	StackPtr  addrspace.UserAddr
	EntryAddr addrspace.UserAddr
}

// Execv implements the exec engine of spec.md §4.5: marshals path and argv
// from p's address space, opens the image, builds a fresh address space,
// loads it, marshals argv onto a fresh stack, and commits — destroying the
// old address space only after every failure point has passed.
func (k *Kernel) Execv(p *PCB, pathAddr, argvAddr addrspace.UserAddr) (res ExecResult, err error) {
	report := k.trace("Execv")
	defer func() { report(err) }()

	as := p.AddressSpace()
	cwd := p.Cwd()

	// Step 1: copy path.
	path, err := as.CopyInString(pathAddr, k.Config.PathMax)
	if err != nil {
		return ExecResult{}, err
	}
	if path == "" {
		return ExecResult{}, kerrno.EINVAL
	}

	// Step 2: count argc, reading user pointers one at a time.
	maxArgs := k.Config.ArgMax / ptrSize
	var argPtrs []addrspace.UserAddr
	for i := 0; ; i++ {
		if len(argPtrs) >= maxArgs {
			return ExecResult{}, kerrno.E2BIG
		}
		var raw [ptrSize]byte
		if err := as.CopyInBytes(argvAddr+addrspace.UserAddr(i*ptrSize), raw[:]); err != nil {
			return ExecResult{}, err
		}
		ptr := addrspace.UserAddr(binary.LittleEndian.Uint64(raw[:]))
		if ptr == 0 {
			break
		}
		argPtrs = append(argPtrs, ptr)
	}
	argc := len(argPtrs)

	// Step 3: copy argv strings, tallying padded stack footprint.
	argStrings := make([]string, argc)
	footprint := 0
	for i, ptr := range argPtrs {
		s, err := as.CopyInString(ptr, k.Config.ArgMax)
		if err != nil {
			return ExecResult{}, err
		}
		argStrings[i] = s
		footprint += alignUp(len(s)+1, 4)
	}

	arrSize := alignUp((argc+1)*ptrSize, ptrSize)
	if footprint+arrSize > k.Config.ArgMax {
		return ExecResult{}, kerrno.E2BIG
	}

	// Step 4: open the image read-only. Nothing before this point has any
	// address-space side effect (spec.md §4.5 "Rollback").
	image, err := k.VFS.Open(cwd, path, vfscontract.ORDONLY, 0)
	if err != nil {
		return ExecResult{}, err
	}

	// Step 5: build the new address space and swap it in, retaining the old
	// one. This is the point past which failures must roll back.
	newAS := addrspace.Create()

	p.mu.Lock()
	oldAS := p.as
	p.as = newAS
	p.mu.Unlock()

	oldAS.Deactivate()
	newAS.Activate()

	rollback := func(cause error) (ExecResult, error) {
		p.mu.Lock()
		p.as = oldAS
		p.mu.Unlock()

		newAS.Deactivate()
		oldAS.Activate()
		newAS.Destroy()
		image.DecRef()

		return ExecResult{}, cause
	}

	// Step 6: load the image.
	entry, err := addrspace.LoadELF(newAS, image)
	if err != nil {
		return rollback(err)
	}

	// Step 7: define the stack.
	sp, err := newAS.DefineStack()
	if err != nil {
		return rollback(err)
	}

	// Step 8: marshal argv onto the user stack, descending.
	argAddrs := make([]addrspace.UserAddr, argc+1)
	for i := argc - 1; i >= 0; i-- {
		s := argStrings[i]
		n := len(s) + 1
		sp = alignDown(sp-addrspace.UserAddr(alignUp(n, 4)), 4)

		bytes := make([]byte, n)
		copy(bytes, s)
		if err := newAS.CopyOutBytes(sp, bytes); err != nil {
			return rollback(err)
		}
		argAddrs[i] = sp
	}
	argAddrs[argc] = 0

	arrBytes := make([]byte, (argc+1)*ptrSize)
	for i, addr := range argAddrs {
		binary.LittleEndian.PutUint64(arrBytes[i*ptrSize:], uint64(addr))
	}
	sp = alignDown(sp-addrspace.UserAddr(len(arrBytes)), ptrSize)
	if err := newAS.CopyOutBytes(sp, arrBytes); err != nil {
		return rollback(err)
	}
	userArgv := sp

	// Step 9: commit. oldAS was already deactivated at the step-5 swap, so
	// it is safe to destroy now (spec.md §5 "Address-space safety").
	oldAS.Destroy()
	image.DecRef()

	k.logf("execv(pid=%d, path=%q, argc=%d)", p.PID, path, argc)

	return ExecResult{
		Argc:      argc,
		ArgvAddr:  userArgv,
		StackPtr:  sp,
		EntryAddr: entry,
	}, nil
}
