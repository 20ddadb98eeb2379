// Package transcriber drives the speech-to-text API for chunked audio.
//
// Each audio chunk uploads as one multipart request carrying the model name,
// a model-dependent response format, and optional language/prompt hints.
// Uploads fan out in parallel bounded by MaxConcurrent while sharing one
// retry and rate-limit policy, and results come back in chunk order
// regardless of completion order.
//
// Key types:
//   - Config: connection, retry, and concurrency settings
//   - Client: the API driver
//
// Primary entry point:
//   - Client.TranscribeChunks: transcribes every chunk of a job
package transcriber
