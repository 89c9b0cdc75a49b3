// Package syscallbridge routes guest system calls to host handlers:
// an SVC instruction exits translated code back to the dispatcher
// (see translate/system.go and dispatch.Dispatcher.Run), which calls
// into this number-to-handler table instead of trying to translate
// every guest syscall's side effects into native x86. Numbers follow
// the Linux AArch64 ABI.
package syscallbridge

import (
	"golang.org/x/sys/unix"

	"github.com/lookbusy1344/arm64jit/guestmem"
)

// Unimplemented is the sentinel Dispatch returns for any
// syscall number with no registered handler, distinct from any real
// errno.
const Unimplemented int64 = -0x7FFFFFFF

// Linux AArch64 syscall numbers. New registers default handlers for
// exit, write, read and close only; the others have none.
const (
	SysIoctl  = 29
	SysOpenat = 56
	SysClose  = 57
	SysRead   = 63
	SysWrite  = 64
	SysExit   = 93
	SysBrk    = 214
	SysMunmap = 215
	SysMmap   = 222
)

// Handler services one syscall number. args holds up to six argument
// registers (X0-X5); the return value is placed in the guest's X0 on
// return, matching the AArch64 syscall ABI.
type Handler func(b *Bridge, args [6]uint64) int64

// Bridge owns the handler table and the guest address space handlers
// need to resolve pointer arguments (e.g. write's buffer argument)
// into host-readable memory.
type Bridge struct {
	mem      *guestmem.Space
	handlers map[uint64]Handler
	exitCode int32
	exited   bool
}

// New returns a Bridge with the default handler set registered.
func New(mem *guestmem.Space) *Bridge {
	b := &Bridge{mem: mem, handlers: make(map[uint64]Handler)}
	b.Register(SysExit, handleExit)
	b.Register(SysWrite, handleWrite)
	b.Register(SysRead, handleRead)
	b.Register(SysClose, handleClose)
	return b
}

// Register installs or replaces the handler for a syscall number.
func (b *Bridge) Register(number uint64, h Handler) {
	b.handlers[number] = h
}

// Dispatch services one guest system call. Translated SVC
// instructions never call this directly: the translate package's SVC
// translator (translate/system.go) records a pending-syscall flag and
// exits back to the dispatcher, which reads the guest's X8 (syscall
// number) and X0-X5 (arguments) out of guest.State, calls Dispatch
// here, and writes the i64 result back into the guest's X0 itself
// (dispatch.Dispatcher.runPendingSyscall, not this package).
func (b *Bridge) Dispatch(number uint64, a0, a1, a2, a3, a4, a5 uint64) int64 {
	h, ok := b.handlers[number]
	if !ok {
		return Unimplemented
	}
	return h(b, [6]uint64{a0, a1, a2, a3, a4, a5})
}

// Exited reports whether a guest exit syscall has been observed, and
// the code it requested, for the dispatcher's run loop to notice.
func (b *Bridge) Exited() (bool, int32) {
	return b.exited, b.exitCode
}

func handleExit(b *Bridge, args [6]uint64) int64 {
	b.exited = true
	b.exitCode = int32(args[0])
	return 0
}

func handleWrite(b *Bridge, args [6]uint64) int64 {
	fd, guestBuf, count := int(args[0]), uintptr(args[1]), args[2]
	data, err := b.mem.ReadAt(guestBuf, int(count))
	if err != nil {
		return -int64(unix.EFAULT)
	}
	n, err := unix.Write(fd, data)
	if err != nil {
		return translateErrno(err)
	}
	return int64(n)
}

func handleRead(b *Bridge, args [6]uint64) int64 {
	fd, guestBuf, count := int(args[0]), uintptr(args[1]), args[2]
	data := make([]byte, count)
	n, err := unix.Read(fd, data)
	if err != nil {
		return translateErrno(err)
	}
	if n > 0 {
		if werr := b.mem.WriteAt(guestBuf, data[:n]); werr != nil {
			return -int64(unix.EFAULT)
		}
	}
	return int64(n)
}

func handleClose(b *Bridge, args [6]uint64) int64 {
	if err := unix.Close(int(args[0])); err != nil {
		return translateErrno(err)
	}
	return 0
}

func translateErrno(err error) int64 {
	if errno, ok := err.(unix.Errno); ok {
		return -int64(errno)
	}
	return -int64(unix.EIO)
}
