// Package restclient wraps individual HTTP request attempts with the retry,
// backoff, and pacing policy shared by the transcription and summarization
// drivers.
//
// A Caller owns one rate gate and one retry budget; drivers hand it a thunk
// that performs a single request and parses the response. Retriable statuses
// and transport errors are retried with exponential backoff, honoring the
// server's Retry-After header and the configured backoff cap. Everything else
// surfaces immediately.
package restclient
