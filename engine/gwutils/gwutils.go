// Package gwutils contains the panic-containment primitive worldlink uses
// at every boundary where client-supplied code (a dispatcher listener, a
// posted callback) runs inside core bookkeeping and must not be allowed to
// bring the whole process down (spec.md 4.4 "a listener that raises is
// logged and treated as having returned NOP"). Adapted from goworld's
// engine/gwutils.RunPanicless.
package gwutils

import "github.com/xiaonanln/worldlink/engine/gwlog"

// RunPanicless calls f, recovering and logging any panic instead of
// letting it propagate. Returns true if f panicked.
func RunPanicless(f func()) (paniced bool) {
	return RunPaniclessNamed("", f)
}

// RunPaniclessNamed is RunPanicless with a label identifying the calling
// subsystem (e.g. "event", "post") in the trace, so a panic recovered deep
// inside a shared callback queue can be attributed to its caller.
// engine/event's Dispatcher and engine/post's Queue both call this instead
// of RunPanicless directly.
func RunPaniclessNamed(label string, f func()) (paniced bool) {
	defer func() {
		if err := recover(); err != nil {
			if label != "" {
				gwlog.TraceError("%s: panic recovered: %v", label, err)
			} else {
				gwlog.TraceError("panic recovered: %v", err)
			}
			paniced = true
		}
	}()

	f()
	return
}

// RepeatUntilPanicless runs f repeatedly until a call completes without
// panicking.
func RepeatUntilPanicless(f func()) {
	for RunPanicless(f) {
	}
}
