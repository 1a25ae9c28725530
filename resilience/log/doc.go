// Package log defines the leveled Logger interface consumed by the resilience
// components, together with three implementations: GoLogger on top of the
// standard library logger, ZapLogger on top of uber-go/zap, and NoneLogger
// which discards everything.
package log
