// Package main implements the minutes operator CLI.
//
// The command tree translates terminal invocations into HTTP calls against
// the daemon's API: uploading recordings, inspecting job state, listing
// jobs, and health checks, plus local configuration scaffolding. Rendering
// and request plumbing live here; the behavior worth testing in depth lives
// in the internal packages.
package main
