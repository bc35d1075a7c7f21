// Package client implements the lmo server's download API over HTTP.
//
// Unary calls (health, start, cancel) are JSON requests bounded by
// Options.Timeout. Download progress arrives as server-sent events, one
// JSON-encoded downloader.DownloadEvent per "data:" frame, and is exposed
// as a downloader.EventStream.
package client
