/*
Package log provides structured logging for partitiond using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("watchdog")                │          │
	│  │  - WithPartition(3)                         │          │
	│  │  - WithServiceID("greeter/alice")            │          │
	│  │  - WithTaskID("task-def456")                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "watchdog",                 │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "reconciliation pass complete" │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF reconciliation pass complete component=watchdog │      │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all partitiond packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "watchdog", "pool")
  - WithPartition: Add partition ID context
  - WithServiceID: Add service ID context (ServiceName + Key)
  - WithTaskID: Add background task ID context

# Usage

Initializing the Logger:

	import "github.com/cuemby/partitiond/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("storage manager starting")
	log.Debug("opening database")
	log.Warn("watchdog reconciliation took longer than expected")
	log.Error("failed to apply command")
	log.Fatal("cannot start without data directory") // exits process

Structured Logging:

	log.Logger.Info().
		Uint32("partition_id", 3).
		Uint64("leader_epoch", 7).
		Msg("invocation applied")

Component Loggers:

	watchdogLog := log.WithComponent("watchdog")
	watchdogLog.Info().Msg("starting reconciliation loop")

	svcLog := log.WithServiceID("greeter/alice")
	svcLog.Debug().Msg("invocation suspended awaiting completion")

# Integration Points

This package integrates with:

  - pkg/rocksdb: logs database lifecycle and watchdog reconciliation
  - pkg/partition: logs invariant violations surfaced by callers of Apply
  - cmd/partitiond: logs CLI subcommand progress

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces

Don't:
  - Log secrets or unredacted invocation arguments
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
*/
package log
