// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package vfscontract

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacobsa/kernsim/kerrno"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// memVFS is an in-memory reference implementation of VFS, standing in for a
// real on-disk filesystem the way samples/memfs stands in for one in the
// teacher's own test harness. It is not part of the subsystem under test;
// it is the "external collaborator" the subsystem calls through.
type memVFS struct {
	clock timeutil.Clock

	// When acquiring this lock, the caller must hold no inode locks.
	mu syncutil.InvariantMutex

	// The collection of live inodes, indexed by ID. Slot 0 is unused so that
	// the zero value of an ID is recognizably invalid.
	//
	// INVARIANT: inodes[rootID] != nil
	// INVARIANT: inodes[rootID].dir
	inodes map[uint64]*memInode // GUARDED_BY(mu)

	nextID uint64 // GUARDED_BY(mu)
}

const rootID = 1

// NewMemVFS creates an in-memory VFS with a single root directory, the way
// samples/memfs.NewMemFS seeds a root inode.
func NewMemVFS(clock timeutil.Clock) VFS {
	fs := &memVFS{
		clock:  clock,
		inodes: make(map[uint64]*memInode),
		nextID: rootID,
	}

	root := fs.newInode(true)
	fs.inodes[root.id] = root
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fs
}

func (fs *memVFS) checkInvariants() {
	root, ok := fs.inodes[rootID]
	if !ok {
		panic("missing root inode")
	}
	if !root.dir {
		panic("root inode is not a directory")
	}
}

// EXCLUSIVE_LOCKS_REQUIRED(fs.mu)
func (fs *memVFS) newInode(dir bool) *memInode {
	id := fs.nextID
	fs.nextID++

	in := &memInode{
		id:    id,
		fs:    fs,
		dir:   dir,
		mtime: fs.clock.Now(),
	}
	if dir {
		in.entries = make(map[string]uint64)
	}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)

	return in
}

// memInode is both a regular file and directory representation; dir selects
// which fields are meaningful, matching memfs's single inode struct housing
// both file contents and directory entries.
type memInode struct {
	id  uint64
	fs  *memVFS
	dir bool

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	refcount int // VOP_INCREF/VOP_DECREF count; starts at 0, callers IncRef.
	contents []byte
	entries  map[string]uint64
	mtime    time.Time
}

func (in *memInode) checkInvariants() {
	if in.dir && in.contents != nil {
		panic("directory inode has file contents")
	}
	if !in.dir && in.entries != nil {
		panic("file inode has directory entries")
	}
	if in.refcount < 0 {
		panic(fmt.Sprintf("negative refcount for inode %d", in.id))
	}
}

func (in *memInode) ReadAt(p []byte, offset int64) (n int, err error) {
	if in.dir {
		err = kerrno.EISDIR
		return
	}

	in.mu.RLock()
	defer in.mu.RUnlock()

	if offset >= int64(len(in.contents)) {
		return 0, nil
	}

	n = copy(p, in.contents[offset:])
	return
}

func (in *memInode) WriteAt(p []byte, offset int64) (n int, err error) {
	if in.dir {
		err = kerrno.EISDIR
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	end := offset + int64(len(p))
	if end > int64(len(in.contents)) {
		grown := make([]byte, end)
		copy(grown, in.contents)
		in.contents = grown
	}

	n = copy(in.contents[offset:end], p)
	in.mtime = in.fs.clock.Now()
	return
}

func (in *memInode) Stat() (Stat, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return Stat{Size: int64(len(in.contents))}, nil
}

func (in *memInode) Seekable() bool {
	return true
}

func (in *memInode) IncRef() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.refcount++
}

func (in *memInode) DecRef() {
	in.mu.Lock()
	in.refcount--
	destroy := in.refcount == 0
	in.mu.Unlock()

	if destroy {
		in.fs.mu.Lock()
		delete(in.fs.inodes, in.id)
		in.fs.mu.Unlock()
	}
	if in.refcount < 0 {
		panic(fmt.Sprintf("inode %d refcount went negative", in.id))
	}
}

// splitPath returns the non-empty path components of p.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// resolveDir walks components against start, returning the final directory
// inode (with a reference held by the caller's ownership of start, not a
// fresh one). It does not create anything.
func (fs *memVFS) resolveDir(start *memInode, components []string) (*memInode, error) {
	cur := start
	for _, name := range components {
		cur.mu.RLock()
		childID, ok := cur.entries[name]
		cur.mu.RUnlock()
		if !ok {
			return nil, kerrno.ENOENT
		}

		fs.mu.RLock()
		child, ok := fs.inodes[childID]
		fs.mu.RUnlock()
		if !ok || !child.dir {
			return nil, kerrno.ENOTDIR
		}
		cur = child
	}
	return cur, nil
}

func (fs *memVFS) startInode(cwd File) (*memInode, error) {
	if cwd == nil {
		fs.mu.RLock()
		root := fs.inodes[rootID]
		fs.mu.RUnlock()
		return root, nil
	}
	in, ok := cwd.(*memInode)
	if !ok {
		return nil, kerrno.EINVAL
	}
	return in, nil
}

func (fs *memVFS) Open(cwd File, path string, flags OpenFlags, mode uint32) (File, error) {
	if _, err := flags.AccessMode(); err != nil {
		return nil, err
	}

	start, err := fs.startInode(cwd)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(path, "/") {
		start, _ = fs.startInode(nil)
	}

	components := splitPath(path)
	if len(components) == 0 {
		start.IncRef()
		return start, nil
	}

	parent, err := fs.resolveDir(start, components[:len(components)-1])
	if err != nil {
		return nil, err
	}

	leaf := components[len(components)-1]

	parent.mu.Lock()
	childID, ok := parent.entries[leaf]
	var child *memInode
	if !ok {
		if flags&OCREAT == 0 {
			parent.mu.Unlock()
			return nil, kerrno.ENOENT
		}

		fs.mu.Lock()
		child = fs.newInode(false)
		fs.inodes[child.id] = child
		fs.mu.Unlock()

		parent.entries[leaf] = child.id
		parent.mtime = fs.clock.Now()
	} else {
		fs.mu.RLock()
		child = fs.inodes[childID]
		fs.mu.RUnlock()
	}
	parent.mu.Unlock()

	if child.dir {
		return nil, kerrno.EISDIR
	}

	if flags&OTRUNC != 0 {
		child.mu.Lock()
		child.contents = nil
		child.mu.Unlock()
	}

	child.IncRef()
	return child, nil
}

func (fs *memVFS) Chdir(cwd File, path string) (File, error) {
	start, err := fs.startInode(cwd)
	if err != nil {
		return nil, err
	}

	target, err := fs.resolveDir(start, splitPath(path))
	if err != nil {
		return nil, err
	}

	target.IncRef()
	return target, nil
}

func (fs *memVFS) Getcwd(cwd File, buf []byte) (int, error) {
	in, err := fs.startInode(cwd)
	if err != nil {
		return 0, err
	}

	name := fs.pathOf(in)
	n := copy(buf, name)
	return n, nil
}

// pathOf performs a brute-force search from the root for in's path, good
// enough for a reference implementation with no hard-link support.
func (fs *memVFS) pathOf(target *memInode) string {
	if target.id == rootID {
		return "/"
	}

	fs.mu.RLock()
	root := fs.inodes[rootID]
	fs.mu.RUnlock()

	var walk func(dir *memInode, prefix string) (string, bool)
	walk = func(dir *memInode, prefix string) (string, bool) {
		dir.mu.RLock()
		entries := make(map[string]uint64, len(dir.entries))
		for k, v := range dir.entries {
			entries[k] = v
		}
		dir.mu.RUnlock()

		for name, id := range entries {
			full := prefix + "/" + name
			if id == target.id {
				return full, true
			}

			fs.mu.RLock()
			child := fs.inodes[id]
			fs.mu.RUnlock()

			if child != nil && child.dir {
				if p, ok := walk(child, full); ok {
					return p, true
				}
			}
		}
		return "", false
	}

	if p, ok := walk(root, ""); ok {
		return p
	}
	return "?"
}

func (fs *memVFS) Root() (File, error) {
	fs.mu.RLock()
	root := fs.inodes[rootID]
	fs.mu.RUnlock()

	root.IncRef()
	return root, nil
}
