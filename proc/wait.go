// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package proc

import "github.com/jacobsa/kernsim/kerrno"

// mkwaitExit encodes an exit code into the wait-status shape _MKWAIT_EXIT
// produces: the code in the high byte, a zero low byte signaling "exited
// normally" rather than "killed by signal" (a distinction this subsystem
// never produces, since spec.md's non-goals exclude signals).
func mkwaitExit(code int32) int32 {
	return (code & 0xff) << 8
}

// Exit implements the exit half of the wait/exit rendezvous (spec.md §4.6).
// It detaches the calling thread from p, releases p's cwd and address
// space, closes every descriptor, then records the exit code and wakes any
// waiter. p itself remains in the PID registry, awaiting a parent's
// waitpid.
func (k *Kernel) Exit(p *PCB, code int32) {
	p.threadMu.Lock()
	p.threadCount--
	if p.threadCount < 0 {
		panic("thread count went negative on exit")
	}
	p.threadMu.Unlock()

	p.mu.Lock()
	cwd := p.cwd
	as := p.as
	p.cwd = nil
	p.as = nil
	p.mu.Unlock()

	cwd.DecRef()
	as.Deactivate()
	as.Destroy()

	p.Files.CloseAll()

	p.waitMu.Lock()
	p.exitCode = mkwaitExit(code)
	p.exited = true
	p.waitCV.Broadcast()
	p.waitMu.Unlock()

	k.logf("exit(pid=%d, code=%d)", p.PID, code)
}

// Waitpid implements spec.md §4.6: blocks until the child identified by
// pid has exited, then reaps its PCB from the registry and returns its
// exit status. options must be zero (no WNOHANG in the core — spec.md §9).
func (k *Kernel) Waitpid(caller *PCB, pid PID, options int) (rpid PID, code int32, err error) {
	report := k.trace("Waitpid")
	defer func() { report(err) }()

	if options != 0 {
		return 0, 0, kerrno.EINVAL
	}

	child := k.Registry.Lookup(pid)
	if child == nil {
		return 0, 0, kerrno.ESRCH
	}
	if child.ParentPID != caller.PID {
		return 0, 0, kerrno.ECHILD
	}

	child.waitMu.Lock()
	for !child.exited {
		child.waitCV.Wait()
	}
	code = child.exitCode
	child.waitMu.Unlock()

	// Never destroys a PCB whose exit flag is false (spec.md §4.7): by this
	// point child.exited is guaranteed true.
	k.Registry.Remove(pid)

	k.logf("waitpid(caller=%d, pid=%d) = (%d, %d)", caller.PID, pid, pid, code)
	return pid, code, nil
}
