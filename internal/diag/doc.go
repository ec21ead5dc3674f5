// Package diag defines the diagnostic taxonomy and the reporter that
// aggregates and orders verdicts for the driver.
//
// Every diagnostic has a Kind (the concrete error), a Class (its family in
// the taxonomy) and a stable code:
//
//	E2xx  DeclarationError   duplicate modules/impls, orphan impls
//	E3xx  EffectError        effect mismatch, await/async context, budgets
//	E4xx  PolicyBridgeError  ownership escape, GC to borrow, FFI rules
//	E5xx  ConcurrencyError   missing Send/Share capability
//	E6xx  GraphError         unresolved calls
//	E9xx  InternalError      defects in the engine itself
//
// Passes accumulate diagnostics rather than failing fast; the Reporter
// sorts them by source position so output is stable across runs.
package diag
