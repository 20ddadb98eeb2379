// Package language provides unified language code normalization and mapping.
//
// Transcription responses report languages inconsistently (ISO 639-1 codes,
// ISO 639-2 codes, full words like "english"). All conversions are
// consolidated here so job status and CLI rendering agree on one form.
package language
