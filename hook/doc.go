// Package hook implements the callback machinery that lets feature
// plugins intercept graphics API entry points.
//
// # Model
//
// A plugin registers typed callbacks against entry points identified by
// [FunctionID]. Each callback runs in one of two phases: [PhaseBefore]
// callbacks run before the real API call and may ask for it to be
// skipped, [PhaseAfter] callbacks run after it. Within a phase,
// callbacks run in ascending priority order; callbacks registered with
// equal priority run in registration order.
//
// # Registration
//
// Callbacks are owned: every registration names the plugin that made
// it, and [Table.Unregister] removes all of an owner's callbacks at
// once when a plugin shuts down. Registering the same owner twice for
// the same entry point and phase is ignored, so a plugin restarted
// through its lifecycle does not stack duplicate hooks.
//
// # Concurrency
//
// Table uses copy-on-write hook lists: dispatch reads a snapshot
// without holding any lock across callback execution, so a callback may
// itself register or unregister hooks without deadlocking.
package hook
