// Package ir provides the program representation consumed by fcrcheck.
//
// This package contains type definitions and lattice values only. All other
// internal packages import ir; ir imports nothing internal, so it remains
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Effects, policies and ownership are closed enumerations with total
//     union/removal operations; there is no subtype hierarchy
//   - Everything here is a value scoped to one analysis run
//   - All JSON tags use snake_case
//   - Canonical JSON (RFC 8785) is the only encoding used for fingerprints
package ir
