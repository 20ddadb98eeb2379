// Package queue carries stage tasks between the API and the worker pool
// over a named Redis list.
//
// The Broker enqueues JSON-encoded tasks and reserves them with a blocking
// move onto a processing list, so a crashed worker never loses work: on
// startup Recover sweeps the processing list back onto the pending list and
// the stage re-runs. Settlement is explicit; Ack removes the reserved
// payload, Requeue returns it for another delivery.
//
// The WorkerPool drains the queue with a fixed number of workers. Each task
// runs under the configured stage timeout; when a handler returns an error
// or the timeout fires, the pool invokes the failure hook before settling
// the task, and the hook records the job failure marker.
package queue
