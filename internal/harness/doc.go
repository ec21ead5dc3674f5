// Package harness runs analysis scenarios: manifests plus the diagnostics
// they are expected to produce.
//
// A scenario is a YAML file:
//
//	name: effect_mismatch
//	description: undeclared IO reached through a call
//	manifests:
//	  - ../manifests/effects.yaml
//	expect:
//	  - kind: EffectMismatchError
//	    function: app.main
//	    message: performs effect IO
//
// Manifest paths are relative to the scenario file. Every expectation must
// match at least one diagnostic (or exactly count of them), and every
// diagnostic must be matched by some expectation. A scenario with
// expect_ok passes only when the analysis reports nothing.
//
// Golden files hold the rendered diagnostics (see Render) and are compared
// byte for byte with goldie.
package harness
