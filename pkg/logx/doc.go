// Package logx is a small structured logging layer over zerolog.
//
// It exposes a Field-based API (logx.String, logx.Int64, ...) so call sites
// stay stable even if the backing logger changes, and a Service whose sinks
// and level can be swapped at runtime via Apply().
package logx
