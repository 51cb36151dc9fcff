// Package native defines the graphics API surface that the interposer
// sits in front of: opaque object handles, result codes, creation
// descriptors, and the [Driver] interface that concrete backends implement.
//
// # Handles
//
// API objects are identified by opaque uint64 handles ([InstanceID],
// [DeviceID], [QueueID], and so on). Zero is never a valid handle;
// [InvalidID] marks an absent object. Drivers allocate handles and own
// the mapping to their backing resources.
//
// # Results
//
// Operations return a [Result] instead of an error. Negative values are
// failures, zero is [Success], and positive values are non-fatal status
// codes such as [NotReady] or [Suboptimal]. This mirrors the calling
// convention of the underlying graphics APIs, where a positive status
// still carries a usable result.
//
// # Drivers
//
// A [Driver] exposes the real API through a [DispatchTable] of entry
// points. Drivers register themselves via [Register], typically from an
// init function, and the runtime selects one through [Default] or by
// name through [Get].
package native
