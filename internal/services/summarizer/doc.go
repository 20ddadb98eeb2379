// Package summarizer turns a finished transcript into summary sections,
// action items, and computed quality metrics via a chat-completion API.
//
// The prompt packs timestamped transcript snippets under a character budget
// and asks for a JSON object with `summary_sections` and `action_items`.
// Parsing is deliberately forgiving about the model's key names and number
// formats, but every timestamp is clamped into the transcript's range and
// degenerate spans are dropped. Quality metrics are always computed locally;
// the model's own confidence is carried as an opaque extra.
//
// Key types:
//   - Config: connection, retry, and prompt budget settings
//   - Client: the API driver
//   - Bundle: summary items, action items, quality, and model metadata
//
// Primary entry points:
//   - Client.Summarize: runs one summarization for a job
//   - BuildPrompt: deterministic prompt construction (exposed for reuse)
package summarizer
