// Package downloader monitors a model download that runs on the lmo
// server and reports its progress to the operator.
//
// The package defines:
//   - Session: starts a download and drives it to a single Outcome
//   - Consumer: the bounded-wait event loop over an EventStream
//   - Watcher: turns one operator interrupt into a cancel request
//   - Render helpers and TerminalRenderer: progress bar, status line and
//     one-line announcements
//   - Error handling with structured DownloadError types
//
// The remote side is abstracted by DownloadService; package client
// provides the HTTP implementation.
package downloader
