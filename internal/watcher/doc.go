// Package watcher monitors the watch root recursively and turns every
// filesystem notification into a reload signal.
//
// A Watcher is started once. Construction or registration failures are
// returned to the caller; once watching, per-event problems are logged and the
// loop keeps running until its context is cancelled or Close is called.
package watcher
