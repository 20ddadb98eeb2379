// Command minutesd runs the meeting processing daemon: the HTTP upload API
// and the Redis-backed worker pool that turns recordings into transcripts
// and summaries.
package main
