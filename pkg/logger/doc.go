// Package logger provides the structured logging interface used across the crawler.
//
// It wraps zerolog with a small interface so components can take a Logger
// and tests can substitute NewTestLogger or NewNopLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.Info("Crawl started")
//	logger.WithField("day", "2021-01-01").Info("Day written")
//
// Components usually hold a scoped logger:
//
//	log := logger.GetLogger().WithField("component", "search")
//	log.WarnWithFields("retrying", map[string]interface{}{
//	    "attempt":   2,
//	    "remaining": 8,
//	})
//
// Console output is colored and goes to stderr. When LoggingConfig.File is set,
// JSON lines are appended to that file too.
package logger
