// Package cli implements the interactive offsync client: a small REPL over
// the local record service plus the background sync scheduler. All record
// commands work offline; connectivity only affects when changes reach the
// server.
package cli
