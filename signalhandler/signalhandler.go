// Package signalhandler wires the synchronous-fault hooks to the
// translation core: SIGSEGV/SIGBUS for memory faults inside
// translated code, SIGILL for a translator bug (an invalid host
// encoding actually executed), and SIGTRAP for breakpoints, each
// mapped to a registered policy rather than interpreted here.
// Delivery rides the Go runtime's own machinery:
// os/signal.Notify for the asynchronous cases, and
// debug.SetPanicOnFault plus RecoverFault for faults raised
// synchronously by a guest load/store in JIT'd code, which the runtime
// surfaces as a panic rather than a catchable signal.
package signalhandler

import (
	"os"
	"os/signal"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// Policy selects what happens once a fault has been recorded.
type Policy int

const (
	// PolicyTerminate stops guest execution and reports the fault.
	PolicyTerminate Policy = iota
	// PolicyResumeDispatcher re-enters the dispatcher at the guest PC
	// recovered from the fault, letting it re-translate or fall back.
	PolicyResumeDispatcher
)

// Fault describes one synchronous signal observed while translated
// code was executing.
type Fault struct {
	Signal  unix.Signal
	GuestPC uint64
	Policy  Policy
}

// Handler receives faults as they are recognized. It runs on the
// dispatcher's goroutine (from Poll or RecoverFault), never inside a
// signal context, since the fault policy may itself re-enter the
// dispatcher.
type Handler func(Fault)

// Installer owns the registered signal subscriptions and the guest-PC
// recovery function needed to attribute a host fault back to the guest
// instruction stream.
type Installer struct {
	recoverPC func() uint64
	onFault   Handler
	policies  map[unix.Signal]Policy
	incoming  chan os.Signal
}

// New returns an Installer. recoverPC must return the guest PC most
// recently written to guest state by a block epilogue; onFault is
// invoked for every recognized signal.
func New(recoverPC func() uint64, onFault Handler) *Installer {
	return &Installer{
		recoverPC: recoverPC,
		onFault:   onFault,
		policies: map[unix.Signal]Policy{
			unix.SIGSEGV: PolicyResumeDispatcher,
			unix.SIGBUS:  PolicyResumeDispatcher,
			unix.SIGILL:  PolicyTerminate,
			unix.SIGTRAP: PolicyResumeDispatcher,
		},
		incoming: make(chan os.Signal, 16),
	}
}

// SetPolicy overrides the default policy for one signal.
func (in *Installer) SetPolicy(sig unix.Signal, p Policy) {
	in.policies[sig] = p
}

// Install subscribes to the four fault signals and arms the runtime's
// panic-on-fault mode, so a bad guest memory access in translated code
// becomes a recoverable panic on the dispatcher's goroutine instead of
// killing the process. Callers pair it with RecoverFault in a defer
// around the jitcall path.
func (in *Installer) Install() error {
	debug.SetPanicOnFault(true)
	signal.Notify(in.incoming, unix.SIGSEGV, unix.SIGBUS, unix.SIGILL, unix.SIGTRAP)
	return nil
}

// Uninstall stops signal delivery to this Installer.
func (in *Installer) Uninstall() {
	signal.Stop(in.incoming)
}

// Poll delivers any signal observed since the last call, invoking the
// fault handler with the recovered guest PC and the configured policy.
// The dispatcher calls it between blocks.
func (in *Installer) Poll() {
	for {
		select {
		case sig := <-in.incoming:
			in.deliver(sig.(unix.Signal))
		default:
			return
		}
	}
}

// RecoverFault converts a panic raised by a faulting guest memory
// access inside translated code (runtime.Error under SetPanicOnFault)
// into a Fault delivery. Use in a deferred call around jitcall:
//
//	defer in.RecoverFault()
//
// Panics that are not memory faults are re-raised.
func (in *Installer) RecoverFault() {
	r := recover()
	if r == nil {
		return
	}
	if _, isErr := r.(error); !isErr {
		panic(r)
	}
	in.deliver(unix.SIGSEGV)
}

func (in *Installer) deliver(sig unix.Signal) {
	policy, known := in.policies[sig]
	if !known {
		policy = PolicyTerminate
	}
	in.onFault(Fault{Signal: sig, GuestPC: in.recoverPC(), Policy: policy})
}
