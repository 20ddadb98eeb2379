// Package jobstate derives the observable state of a job from its artifact
// directory.
//
// Nothing here writes: the reader stats the upload root, loads whichever
// artifact files exist, and folds them into a Summary. A failure marker is
// authoritative when present; otherwise the furthest stage with artifacts
// on disk determines the status. Absent or unparseable non-failure files
// count as "not yet produced", so a reader racing a stage write never
// errors, it just reports the previous state.
package jobstate
