// Package store composes the cache, transform log, task queues and event
// emitter into the store orchestrator.
//
// Locally originated transforms enter through Update and are served by the
// request queue; transforms produced elsewhere (another store, a merge)
// enter through Sync and are served by the sync queue. Both queues apply to
// the same cache and log, serialised by one apply lock; only FIFO order
// within a queue is guaranteed.
//
// # Events
//
//	beforeUpdate, beforeSync, beforeQuery   fulfilled in series; an error aborts
//	transform, update, sync, query          settled in series; errors are logged
//	updateFail, syncFail, queryFail         settled in series with the error
//	rollback                                settled with the applied inverses
//
// Listeners run on the queue's goroutine and must not wait on an Update or
// Sync of the same store.
//
// # Persistence
//
// With a bucket, the transform log and both queues persist under
// "<name>/transform-log", "<name>/requests" and "<name>/syncs". Records are
// not persisted; restored queued tasks resume once the store is built.
package store
