// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package connectivity tracks online/offline status for the sync engine. The
// status comes either from a periodic reachability probe or from an explicit
// override (airplane mode, platform signal); the monitor notifies once per
// offline-to-online transition.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProbeFunc reports remote reachability; a nil error means online.
type ProbeFunc func(ctx context.Context) error

// Monitor is the connectivity oracle. It starts offline; the first
// successful probe (or SetOnline call) produces a reconnection event, which
// conveniently kicks a reconciliation pass right after app start.
type Monitor struct {
	probe        ProbeFunc
	interval     time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger

	mu          sync.Mutex
	online      bool
	reconnected chan struct{}
}

// NewMonitor creates a monitor. probe may be nil when only explicit
// SetOnline control is used (tests, simulators).
func NewMonitor(probe ProbeFunc, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probe:        probe,
		interval:     interval,
		probeTimeout: 5 * time.Second,
		logger:       logger,
		reconnected:  make(chan struct{}, 1),
	}
}

// IsOnline reports the current connectivity status.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Reconnected returns the channel that receives one value per
// offline-to-online transition. The channel has capacity one; transitions
// that occur while a previous notification is still unconsumed coalesce.
func (m *Monitor) Reconnected() <-chan struct{} {
	return m.reconnected
}

// SetOnline overrides the connectivity status, firing the reconnection
// notification when it flips from offline to online.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online == wasOnline {
		return
	}
	if online {
		m.logger.Info("Connectivity restored")
		select {
		case m.reconnected <- struct{}{}:
		default:
		}
	} else {
		m.logger.Info("Connectivity lost")
	}
}

// Run probes reachability until ctx is cancelled. It is a no-op when the
// monitor has no probe.
func (m *Monitor) Run(ctx context.Context) {
	if m.probe == nil {
		return
	}

	m.probeOnce(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.probe(probeCtx)
	if err != nil {
		m.logger.Debug("Connectivity probe failed", "error", err)
	}
	m.SetOnline(err == nil)
}
