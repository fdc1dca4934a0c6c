/*
Package log provides structured logging for the Epicenter core using zerolog.

It wraps zerolog to give every long-lived component (documents, providers,
the orchestrator) a child logger carrying its own identity fields, so a
single JSON log stream can be filtered by component, workspace, or
document without string-matching messages.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("head").With().Str("workspace_id", id).Logger()
	logger.Info().Int("epoch", epoch).Msg("epoch bumped")

The package-level Info/Debug/Warn/Error/Errorf helpers log on the global
Logger without a component field. pkg/lifecycle logs each provider sync
failure and each panicking provider Destroy as its own line through a
"lifecycle" component logger, rather than propagating it to the caller.
*/
package log
