// Package async provides safe fire-and-forget goroutine execution.
//
// Every asynchronous write in the access-control path (usage bumps, rate
// window persistence) goes through SafeGo: failures are logged locally and
// never surfaced to the request, and panics never take the process down.
// Semantics are best-effort, at-most-once.
package async
