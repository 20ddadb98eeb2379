// Package transcript merges chunk-level transcription responses into the
// globally ordered transcript persisted for each job.
//
// The transcription service only ever sees one chunk at a time, so its
// segment timestamps are relative to the chunk. Assembly translates them to
// absolute offsets on the audio master, clamps them into the chunk's window,
// drops empty or degenerate spans, and backfills the detected language
// across segments that lack one.
//
// Key types:
//   - ChunkResult: raw model response for one audio chunk plus the chunk's
//     placement in the master timeline
//
// Primary entry point:
//   - Assemble: produces ordered transcript segments from chunk results
package transcript
