// Package content serves static files next to WebSocket routes.
//
// A Source resolves request paths to file contents. FSSource reads from any
// fs.FS, typically an embedded directory; S3Source reads from an S3 bucket.
// Handler tries each source in order and serves the first match. A request
// for "/" or any directory resolves to the directory's index.html.
package content
