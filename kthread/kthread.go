// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

// Package kthread simulates the thread-layer external collaborator of
// spec.md §6 (thread_fork, thread_yield, thread_exit, curthread) on top of
// goroutines. The join-status-channel shape is modeled on
// MountedFileSystem's background-goroutine-plus-done-channel pattern in
// mounted_file_system.go: a thread is forked into the background, and
// callers that care about its completion wait on a channel rather than a
// condition variable.
package kthread

import "runtime"

// Thread is a kernel thread bound to exactly one process, the way OS/161
// binds one thread per user process. It has no return value of its own;
// a forked thread communicates results to the rest of the kernel through
// the process control block it was forked for (spec.md §4.4 step 6).
type Thread struct {
	done chan struct{}
}

// Fork starts fn running on a new goroutine bound conceptually to a
// process, returning immediately the way thread_fork does not block on the
// new thread's completion. Callers that need to know when the thread has
// exited may call Join.
func Fork(fn func()) *Thread {
	t := &Thread{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		fn()
	}()
	return t
}

// Join blocks until the forked thread has returned from fn (i.e. called
// thread_exit implicitly by returning). Used by tests to wait for a forked
// function to run before asserting on its effects; the subsystem itself
// never calls Join — waiting
// for a child is waitpid's job (spec.md §4.6), not the thread layer's.
func (t *Thread) Join() {
	<-t.done
}

// Yield gives up the current goroutine's turn, the way thread_yield gives
// up the CPU to another runnable thread. Go's scheduler already
// interleaves goroutines preemptively, so this is a cooperative hint rather
// than a requirement for correctness, matching the relationship thread_yield
// has to OS/161's preemptive scheduler.
func Yield() {
	runtime.Gosched()
}
