// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package vfscontract

import (
	"bufio"
	"io"
	"sync"

	"github.com/jacobsa/kernsim/kerrno"
)

// Console is the character device backing descriptors 0/1/2 for a freshly
// bootstrapped process (spec.md §4.3 "Console bootstrap"). It is not
// seekable, reads one byte at a time, and writes block until delivered —
// the reference-implementation stand-in for "con:" in the original kernel.
type Console struct {
	mu sync.Mutex
	r  *bufio.Reader
	w  io.Writer
}

// NewConsole wraps r/w as a console device. Either may be nil if the
// resulting File is only ever used for the opposite direction.
func NewConsole(r io.Reader, w io.Writer) *Console {
	c := &Console{w: w}
	if r != nil {
		c.r = bufio.NewReader(r)
	}
	return c
}

func (c *Console) ReadAt(p []byte, offset int64) (int, error) {
	if c.r == nil {
		return 0, kerrno.EBADF
	}
	if len(p) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < len(p) {
		b, err := c.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n, nil
}

func (c *Console) WriteAt(p []byte, offset int64) (int, error) {
	if c.w == nil {
		return 0, kerrno.EBADF
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.w.Write(p)
}

func (c *Console) Stat() (Stat, error) {
	return Stat{}, nil
}

func (c *Console) Seekable() bool {
	return false
}

func (c *Console) IncRef() {}
func (c *Console) DecRef() {}
