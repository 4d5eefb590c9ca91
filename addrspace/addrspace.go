// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package addrspace simulates the address-space/MMU external collaborator
// of spec.md §6 (as_create, as_copy, as_destroy, as_define_stack,
// as_activate, as_deactivate, load_elf). A real kernel backs this with page
// tables and a hardware MMU; this is a teaching stand-in that models user
// memory as a single flat byte region, the way the teacher's
// buffer/message_provider.go models FUSE message buffers as plain byte
// slices recycled by a freelist rather than as real kernel pages.
package addrspace

import (
	"sync"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/kernsim/vfscontract"
)

// UserAddr is an address in a simulated process's virtual address space.
type UserAddr uint64

const (
	// Layout constants for the simulated address space. Real magnitude
	// doesn't matter here since there's no hardware MMU underneath; only
	// relative placement (stack above image, growing down) does.
	imageBase UserAddr = 0x1000
	stackTop  UserAddr = 0x7fff0000
	stackSize          = 1 << 20 // 1 MiB simulated stack
)

// AddressSpace is a process's address space: an image region (populated by
// LoadELF) and a stack region (populated by DefineStack / CopyOut calls
// during argv marshalling).
type AddressSpace struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	image     []byte
	stack     []byte
	entry     UserAddr
	active    bool
	destroyed bool

	// scratchTop is the bump pointer PutCString descends from, lazily
	// initialized on first use. It tracks the same stack region DefineStack
	// allocates but is independent watermark state: DefineStack resets the
	// stack wholesale for a fresh image, while PutCString only ever carves
	// space off the top for syscall arguments the calling thread places on
	// its own stack before trapping in (spec.md §6 "userptr_t arguments").
	scratchTop UserAddr
}

// Create returns a fresh, empty address space (as_create).
func Create() *AddressSpace {
	return &AddressSpace{}
}

// Copy deep-copies as (as_copy), for the fork engine (spec.md §4.4 step 2).
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.destroyed {
		panic("Copy of destroyed address space")
	}

	child := &AddressSpace{
		image: append([]byte(nil), as.image...),
		stack: append([]byte(nil), as.stack...),
		entry: as.entry,
	}
	return child, nil
}

// Destroy releases as (as_destroy). The caller must have already swapped
// the address space out of its owning PCB and deactivated it per spec.md
// §5 "Address-space safety".
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.active {
		panic("Destroy of an active address space")
	}
	if as.destroyed {
		panic("double Destroy of address space")
	}
	as.destroyed = true
	as.image = nil
	as.stack = nil
}

// Activate marks as as the current address space on the calling thread
// (as_activate). Deactivate must be called, in order, before the address
// space is destroyed (spec.md §5).
func (as *AddressSpace) Activate() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.active = true
}

// Deactivate unmarks as as current (as_deactivate).
func (as *AddressSpace) Deactivate() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.active = false
}

// DefineStack allocates the stack region and returns the initial user stack
// pointer (as_define_stack), from which argv marshalling descends.
func (as *AddressSpace) DefineStack() (UserAddr, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	as.stack = make([]byte, stackSize)
	as.scratchTop = stackTop
	return stackTop, nil
}

// LoadELF parses and loads image into as, returning the entry point
// (load_elf). The reference implementation treats the file's entire
// contents as a flat, already-relocated image rather than parsing real ELF
// section headers — spec.md places ELF parsing out of scope for this
// subsystem (§1 "Out of scope").
func LoadELF(as *AddressSpace, image vfscontract.File) (UserAddr, error) {
	st, err := image.Stat()
	if err != nil {
		return 0, err
	}

	buf := make([]byte, st.Size)
	if _, err := image.ReadAt(buf, 0); err != nil {
		return 0, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.image = buf
	as.entry = imageBase
	return as.entry, nil
}

// translate maps a UserAddr into an offset/slice within the region holding
// it, or reports a fault.
func (as *AddressSpace) translate(addr UserAddr, n int) ([]byte, error) {
	if addr >= imageBase && int(addr-imageBase)+n <= len(as.image) {
		off := int(addr - imageBase)
		return as.image[off : off+n], nil
	}

	stackBase := stackTop - UserAddr(len(as.stack))
	if len(as.stack) > 0 && addr >= stackBase && int(addr-stackBase)+n <= len(as.stack) {
		off := int(addr - stackBase)
		return as.stack[off : off+n], nil
	}

	return nil, kerrno.EFAULT
}

// CopyOutBytes writes p into as at addr (a "copy-out" in kernel parlance:
// kernel to user memory).
func (as *AddressSpace) CopyOutBytes(addr UserAddr, p []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	dst, err := as.translate(addr, len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// CopyInBytes reads len(p) bytes from as at addr into p ("copy-in": user to
// kernel memory).
func (as *AddressSpace) CopyInBytes(addr UserAddr, p []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	src, err := as.translate(addr, len(p))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

// CopyInString copies a NUL-terminated string from as at addr, bounded to
// maxLen bytes including the terminator, per spec.md §4.5's "bounded string
// copies with explicit maximum lengths".
func (as *AddressSpace) CopyInString(addr UserAddr, maxLen int) (string, error) {
	buf := make([]byte, 0, 64)
	for i := 0; i < maxLen; i++ {
		var b [1]byte
		if err := as.CopyInBytes(addr+UserAddr(i), b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return "", kerrno.E2BIG
}

// PutCString writes a NUL-terminated copy of s onto as's stack, as the
// calling thread's own syscall stub would before trapping into the kernel
// with a userptr_t argument, and returns its address. It defines the stack
// region on first use if DefineStack hasn't already been called.
func (as *AddressSpace) PutCString(s string) (UserAddr, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.destroyed {
		panic("PutCString on destroyed address space")
	}

	if as.stack == nil {
		as.stack = make([]byte, stackSize)
	}
	if as.scratchTop == 0 {
		as.scratchTop = stackTop
	}

	n := len(s) + 1
	padded := (n + 3) &^ 3
	addr := (as.scratchTop - UserAddr(padded)) &^ 3

	stackBase := stackTop - UserAddr(len(as.stack))
	if addr < stackBase {
		return 0, kerrno.E2BIG
	}
	as.scratchTop = addr

	buf := make([]byte, n)
	copy(buf, s)
	off := int(addr - stackBase)
	copy(as.stack[off:off+n], buf)

	return addr, nil
}
