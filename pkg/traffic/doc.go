// Package traffic defines the request/response history records and the
// Store interface they are persisted through.
//
// The write path is asynchronous end to end: the proxy handler hands
// records to recorder.Recorder, which queues them on a buffered channel
// drained by a single worker into storage.SQLiteStore. A full queue
// drops records rather than delaying requests, and storage failures are
// logged, never surfaced to the forwarding path.
//
// retention.Pruner deletes records past the configured age on a cron
// schedule.
package traffic
