// Package api exposes the HTTP surface of the minutes daemon: recording
// uploads, job status views derived from the artifact tree, meeting artifact
// bundles, health, and Prometheus metrics.
package api
