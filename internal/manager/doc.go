// Package manager owns loaded model handles: at most one per model id.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type and simple getters.
//   - config.go: ManagerConfig and package defaults; New applies defaults.
//   - types.go: Handle, LoadSpec and lifecycle State.
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, IsModelLoadError).
//   - load.go: GetOrLoad, deduplicated asset fetch and backend construction.
//   - admission.go: per-handle queueing and generation admission.
//   - unload.go: graceful drain and removal.
//   - status.go: Status reporting.
//   - events.go: lifecycle EventPublisher implementations.
//
// Handles are created lazily on first use and live until Unload or Close.
package manager
