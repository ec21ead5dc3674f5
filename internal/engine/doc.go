// Package engine runs one analysis of a compilation unit.
//
// PIPELINE:
//
//  1. Ingestion: module policy table, impl coherence table and call graph
//     are built from the ir.Program. Both tables are frozen afterwards.
//  2. Effects: Unsafe seeds from policy boundaries are fed to the effect
//     solver, which runs to a fixpoint over the SCC condensation.
//  3. Optional cross-check: the Datalog oracle re-derives reachability.
//  4. Parallel stage: the bridger, the coherence checker and the
//     concurrency checker run concurrently. They read only frozen tables
//     and the graph, and each writes its own result.
//  5. Reporting: diagnostics are merged and sorted; the annotated program
//     is assembled and fingerprinted.
//
// Every value built here is scoped to one Analyze call. There is no
// process-wide state apart from the package logger.
//
// DETERMINISM:
// The parallel stage merges results in a fixed order and the reporter
// sorts diagnostics, so two runs over the same program produce identical
// output and fingerprint.
package engine
