// Package artifacts defines the persisted entities of the processing
// pipeline and their JSON storage under each job directory.
//
// Every job owns exactly one directory beneath the upload root. Stage tasks
// write fixed-name JSON files into it (media_assets.json,
// transcript_segments.json, summary_items.json, action_items.json,
// summary_quality.json) and a failure marker (job_failed.json) when a stage
// fails. Writes go through a temp-file rename so readers never observe a
// half-written artifact. Loads treat an absent file as "not yet produced"
// and report malformed content as an error rather than guessing.
//
// # Key Types
//
// MediaAsset: one stored media file, either the audio master or a chunk.
//
// TranscriptSegment: one ordered span of recognised speech with absolute
// millisecond bounds.
//
// SummaryItem / ActionItem / SummaryQualityMetrics: the summary triplet.
//
// JobFailureRecord: the single on-disk witness of a failed stage.
package artifacts
