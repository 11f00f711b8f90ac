// Package vm implements the execution core of the corevm runtime.
//
// This package contains:
//   - Scope chains with depth/offset variable addressing
//   - Immutable method entries, module method tables and visibility rules
//   - Ancestor-chain and super-call resolution
//   - Assumptions and self-specializing dispatch sites (inline caches)
//   - Yield dispatch, assumption-guarded cached values and trace probes
package vm
