// Package logs provides bounded-memory tailing of the daemon log file for
// the CLI. It supports "last N lines" reads via a negative offset and
// follow-mode polling that resumes from the returned offset, so `minutes
// logs --follow` never rereads what it already printed.
package logs
