// Package daemon composes the processing runtime: the Redis-backed task
// queue, the stage worker pool, and the HTTP API server. A file lock under
// the log directory enforces a single running instance per host.
package daemon
