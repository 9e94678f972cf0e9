/*
Package log provides structured logging for s4 using zerolog.

A single package-level Logger is configured once via Init and handed out,
scoped to a component, via WithComponent and friends. Every other package
in this module logs through a component logger rather than constructing
its own zerolog instance.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	txLog := log.WithComponent("txn")
	txLog.Info().Uint64("tx", id).Msg("committed")
*/
package log
