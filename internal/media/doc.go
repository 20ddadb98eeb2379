// Package media prepares uploaded recordings for transcription.
//
// The pipeline extracts a normalized mono audio master from the uploaded
// source, probes its duration, cuts it into fixed-length chunks, and
// describes every produced file as a media asset for the job manifest.
//
// Key types:
//   - Pipeline: drives the transcode, probe, and chunk steps
//   - Result: produced master/chunk paths plus their manifest entries
//
// Primary entry point:
//   - Pipeline.Process: runs the full preparation for one source file
package media
