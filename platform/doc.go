// Package platform provides the real-time-OS style primitives the modem
// transport and its protocol layer are written against: detached threads,
// recursive and non-recursive mutexes, event bit groups, a heap with a
// fatal-on-exhaustion policy, millisecond delays and a process-wide critical
// section.
//
// Callers depend on the Platform interface. Host is the goroutine-backed
// implementation; a process-wide default Host is available through Default
// and the package-level helpers:
//
//	platform.Init()
//	ok := platform.CreateDetachedThread(worker, arg,
//	    platform.DefaultThreadPriority, platform.DefaultThreadStackWords)
//
// # Fatal conditions
//
// Allocation failure and lock misuse have no safe recovery path. They are
// reported as a *FatalError to the handler installed with WithFatalHandler.
// The default handler panics with the error; a handler may instead log and
// exit. If a handler returns, the primitive panics anyway.
package platform
