package rocksdb

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/cuemby/partitiond/pkg/config"
	"github.com/cuemby/partitiond/pkg/log"
	"github.com/cuemby/partitiond/pkg/metrics"
)

// WatchdogCommandKind discriminates the two control messages the Config
// Watchdog accepts.
type WatchdogCommandKind int

const (
	// WatchdogRegister subscribes a database for config reconciliation.
	WatchdogRegister WatchdogCommandKind = iota
	// WatchdogResetAll forces an immediate reconciliation of every
	// registered database, used by tests.
	WatchdogResetAll
)

// WatchdogCommand is sent on the watchdog's command channel.
type WatchdogCommand struct {
	Kind WatchdogCommandKind
	Sub  *ConfigSubscription // WatchdogRegister only
}

// ConfigSubscription is returned to a caller registering a database; it
// carries the amend function the watchdog invokes on every reconciliation
// pass for that database.
type ConfigSubscription struct {
	Name  string
	Amend func(config.CommonOptions)
}

// DbWatchdog runs a background goroutine that biases a three-way select
// in the order Shutdown > Command > Config change, so a shutdown or an
// explicit command is never starved by a steady stream of config-change
// notifications.
type DbWatchdog struct {
	shutdown chan struct{}
	commands chan WatchdogCommand
	changes  <-chan config.CommonOptions

	// subs and current are only ever read or written on the run() goroutine.
	subs    map[string]*ConfigSubscription
	current config.CommonOptions

	currentSnapshot atomic.Value // CommonOptions, for Register's synchronous read
	logger          zerolog.Logger
}

// NewDbWatchdog starts the watchdog loop immediately and returns a handle
// for sending commands. changes delivers a new CommonOptions whenever the
// backing configuration file's mtime advances (see Configuration.Watcher
// in pkg/config).
func NewDbWatchdog(initial config.CommonOptions, changes <-chan config.CommonOptions) *DbWatchdog {
	w := &DbWatchdog{
		shutdown: make(chan struct{}),
		commands: make(chan WatchdogCommand, 64),
		changes:  changes,
		subs:     make(map[string]*ConfigSubscription),
		current:  initial,
		logger:   log.WithComponent("watchdog"),
	}
	w.currentSnapshot.Store(initial)
	go w.run()
	return w
}

// Register subscribes sub for future reconciliation passes, applying the
// watchdog's current configuration immediately. If the watchdog is
// already shut down, the Register command is dropped and logged at Warn
// rather than blocking or panicking, matching spec.md's WatchdogDelivery
// error policy.
func (w *DbWatchdog) Register(sub *ConfigSubscription) {
	sub.Amend(w.currentSnapshot.Load().(config.CommonOptions))
	select {
	case <-w.shutdown:
		metrics.WatchdogDeliveryFailuresTotal.Inc()
		w.logger.Warn().Str("db", sub.Name).Msg("register dropped: watchdog shut down")
		return
	default:
	}
	select {
	case w.commands <- WatchdogCommand{Kind: WatchdogRegister, Sub: sub}:
	case <-w.shutdown:
		metrics.WatchdogDeliveryFailuresTotal.Inc()
		w.logger.Warn().Str("db", sub.Name).Msg("register dropped: watchdog shut down")
	}
}

// ResetAll forces an immediate reconciliation of every registered
// database using the watchdog's current configuration.
func (w *DbWatchdog) ResetAll() {
	select {
	case w.commands <- WatchdogCommand{Kind: WatchdogResetAll}:
	case <-w.shutdown:
		metrics.WatchdogDeliveryFailuresTotal.Inc()
	}
}

// Shutdown stops the watchdog loop.
func (w *DbWatchdog) Shutdown() {
	close(w.shutdown)
}

func (w *DbWatchdog) run() {
	for {
		// Biased select: check Shutdown on its own first so a pending
		// shutdown always wins over a simultaneously-ready command or
		// config change below.
		select {
		case <-w.shutdown:
			return
		default:
		}

		// Then a pending command, ahead of any config change.
		select {
		case cmd := <-w.commands:
			w.handleCommand(cmd)
			continue
		default:
		}

		select {
		case <-w.shutdown:
			return
		case cmd := <-w.commands:
			w.handleCommand(cmd)
		case cfg, ok := <-w.changes:
			if !ok {
				continue
			}
			w.current = cfg
			w.currentSnapshot.Store(cfg)
			w.reconcileAll()
		}
	}
}

func (w *DbWatchdog) handleCommand(cmd WatchdogCommand) {
	switch cmd.Kind {
	case WatchdogRegister:
		w.subs[cmd.Sub.Name] = cmd.Sub
	case WatchdogResetAll:
		w.reconcileAll()
	}
}

func (w *DbWatchdog) reconcileAll() {
	for _, sub := range w.subs {
		sub.Amend(w.current)
	}
	metrics.WatchdogReconciliationsTotal.Inc()
	w.logger.Info().Int("databases", len(w.subs)).Msg("reconciliation pass complete")
}
