package registry

import "errors"

// Expected failure conditions. The HTTP shell maps these onto the
// {result, status, message} envelope; none of them should surface as a panic
// or a 5xx.
var (
	// ErrRegistryBusy means the per-user lock could not be acquired within
	// the configured timeout. Distinct from an empty registry.
	ErrRegistryBusy = errors.New("registry busy: lock not acquired")

	// ErrUnknownPath means the requested path has no entry in the registry.
	ErrUnknownPath = errors.New("path is not registered")

	// ErrSelectorConflict means mutually exclusive selectors were both
	// supplied. Rejected before any storage access.
	ErrSelectorConflict = errors.New("paths and pattern selectors are mutually exclusive")

	// ErrInconsistentState means an artifact was deleted but the registry
	// update failed, leaving a dangling entry. This exact condition is
	// reported verbatim rather than silently recovered.
	ErrInconsistentState = errors.New("system is in an inconsistent state")
)
