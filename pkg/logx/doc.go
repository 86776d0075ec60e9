// Package logx provides the structured logging kit used across sheetops.
//
// It wraps zerolog behind a small Logger value type so components can accept
// a logger without importing zerolog directly, and so tests can pass
// logx.Nop().
package logx
