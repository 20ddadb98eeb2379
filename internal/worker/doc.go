// Package worker executes the pipeline stages behind the queue.
//
// The Orchestrator dispatches reserved tasks to the stage matching the task
// name: ingest prepares the audio master and chunks, transcribe produces the
// ordered transcript, summarize writes the summary bundle. Each stage clears
// the job's failure marker on entry, re-marks it on any error, and enqueues
// the next stage only after its artifacts are durably written.
//
// HandleFailure is the worker pool's failure hook. A marker the stage already
// wrote keeps its stage and message and gains task details; when no stage got
// the chance to record one, the stage is inferred from the task name.
package worker
