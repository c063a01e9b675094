// Package logging wraps log/slog for the service. Entries are
// structured, carry service and version fields, and are filtered by
// the level from config.yaml (JSON to stdout unless configured
// otherwise).
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("lock online", "node_id", 12)
//
// Never log user codes. Log the user id and status, not the digits.
package logging
