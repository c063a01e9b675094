package usercode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStats summarises one synchronization run for logging and telemetry.
type SyncStats struct {
	// RunID uniquely identifies the run.
	RunID string

	// Endpoint is the endpoint that was synchronized.
	Endpoint uint8

	// Full reports whether capabilities were re-probed.
	Full bool

	// Skipped reports whether the checksum shortcut avoided the walk.
	Skipped bool

	// Requests counts the exchanges issued during the run.
	Requests int

	// CodesSeen counts the user-code slots decoded during the walk.
	CodesSeen int

	// Duration is the wall-clock length of the run.
	Duration time.Duration
}

// Synchronize brings the persisted store in line with device state.
//
// The run is a strictly sequential sequence of exchanges:
//
//  1. Probe: on a full run, capabilities and slot count are fetched from
//     the device; on a partial run, cached probe results are read from the
//     store instead.
//  2. Optional state: the master code is fetched when supported, and the
//     keypad mode when more than one mode is advertised.
//  3. Resync decision: with protocol version 2+ and checksum support, the
//     fetched checksum is compared against the cached one; a match skips
//     the walk entirely. Without checksum support (or any cached value)
//     the walk always runs. Version 1 has no checksum concept.
//  4. Walk: version 2+ pages through extended reports following nextUserId
//     (terminating on 0, an out-of-range pointer, or a pointer already
//     visited); version 1 issues one get per slot.
//
// A failure at any step aborts the run; facts already projected stay in
// the store, and re-invoking Synchronize resumes the work idempotently.
// Runs for the same endpoint must not overlap; serializing them is the
// caller's obligation.
func (m *Manager) Synchronize(ctx context.Context, full bool) (*SyncStats, error) {
	stats := &SyncStats{
		RunID:    uuid.NewString(),
		Endpoint: m.endpoint,
		Full:     full,
	}
	started := time.Now()
	defer func() {
		stats.Duration = time.Since(started)
		if m.recorder != nil {
			m.recorder.RecordSync(*stats)
		}
	}()

	m.logger.Info("user code sync starting",
		"endpoint", m.endpoint, "run_id", stats.RunID, "full", full)

	caps, err := m.probe(ctx, full, stats)
	if err != nil {
		return stats, err
	}

	if err := m.refreshOptional(ctx, caps, stats); err != nil {
		return stats, err
	}

	walk, err := m.decideResync(ctx, caps, stats)
	if err != nil {
		return stats, err
	}

	if walk {
		if err := m.fullWalk(ctx, caps, stats); err != nil {
			return stats, err
		}
	} else {
		stats.Skipped = true
		m.logger.Info("user code checksum unchanged, skipping walk",
			"endpoint", m.endpoint, "run_id", stats.RunID)
	}

	m.logger.Info("user code sync complete",
		"endpoint", m.endpoint,
		"run_id", stats.RunID,
		"requests", stats.Requests,
		"codes", stats.CodesSeen,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// probe establishes the capability set: from the device on a full run,
// from cached store values otherwise. Version 1 devices advertise nothing,
// so their capability set is synthesised from protocol defaults.
func (m *Manager) probe(ctx context.Context, full bool, stats *SyncStats) (*CapabilitySet, error) {
	if !full {
		caps, err := m.capabilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("partial sync: %w", err)
		}
		return caps, nil
	}

	count, err := m.GetUsersCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.Requests++

	if m.version < 2 {
		caps := legacyCapabilities(count)
		m.caps = caps
		if err := m.projectCapabilities(ctx, caps); err != nil {
			return nil, err
		}
		return caps, nil
	}

	caps, err := m.GetCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	stats.Requests++
	caps.SupportedUsers = count
	m.caps.SupportedUsers = count
	return caps, nil
}

// legacyCapabilities is the capability set implied by protocol version 1:
// digit-only codes, the three original statuses, no optional features.
func legacyCapabilities(supportedUsers uint16) *CapabilitySet {
	return &CapabilitySet{
		SupportedStatuses:   []UserIDStatus{StatusAvailable, StatusEnabled, StatusDisabled},
		SupportedASCIIChars: "0123456789",
		SupportedUsers:      supportedUsers,
	}
}

// refreshOptional fetches the optional endpoint state gated by
// capabilities: the master code, and the keypad mode when the device has
// more than one mode to be in.
func (m *Manager) refreshOptional(ctx context.Context, caps *CapabilitySet, stats *SyncStats) error {
	if caps.SupportsMasterCode {
		if _, err := m.GetMasterCode(ctx); err != nil {
			return err
		}
		stats.Requests++
	}
	if len(caps.SupportedKeypadModes) > 1 {
		if _, err := m.GetKeypadMode(ctx); err != nil {
			return err
		}
		stats.Requests++
	}
	return nil
}

// decideResync reports whether a full walk is needed. The cached checksum
// is read before the device is queried so a lost cache forces a walk.
func (m *Manager) decideResync(ctx context.Context, caps *CapabilitySet, stats *SyncStats) (bool, error) {
	if m.version < 2 {
		return true, nil
	}
	if !caps.SupportsChecksum {
		return true, nil
	}

	cached, hasCached := m.cachedInt(ctx, PropUserCodeChecksum)

	current, err := m.GetUserCodeChecksum(ctx)
	if err != nil {
		return false, err
	}
	stats.Requests++

	if !hasCached {
		return true, nil
	}
	return int(current) != cached, nil
}

// fullWalk reads every user-code slot from the device.
func (m *Manager) fullWalk(ctx context.Context, caps *CapabilitySet, stats *SyncStats) error {
	if m.version >= 2 {
		return m.walkExtended(ctx, caps, stats)
	}
	return m.walkLegacy(ctx, caps, stats)
}

// walkExtended pages through extended reports starting at slot 1. The
// device drives pagination through nextUserId; the loop terminates on 0,
// on a pointer beyond the supported slot count, and on any pointer already
// visited (a misbehaving device must not cause an infinite loop).
func (m *Manager) walkExtended(ctx context.Context, caps *CapabilitySet, stats *SyncStats) error {
	visited := make(map[uint16]bool)
	next := uint16(1)

	for {
		visited[next] = true

		codes, nextUserID, err := m.extendedGet(ctx, next, true)
		if err != nil {
			return err
		}
		stats.Requests++
		stats.CodesSeen += len(codes)

		if nextUserID == 0 || nextUserID > caps.SupportedUsers {
			return nil
		}
		if visited[nextUserID] {
			m.logger.Warn("device repeated a pagination pointer, stopping walk",
				"endpoint", m.endpoint, "next_user_id", nextUserID)
			return nil
		}
		next = nextUserID
	}
}

// walkLegacy issues one get per slot in [1, supportedUsers].
func (m *Manager) walkLegacy(ctx context.Context, caps *CapabilitySet, stats *SyncStats) error {
	for id := uint16(1); id <= caps.SupportedUsers; id++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("walk aborted at user %d: %w", id, err)
		}
		if _, err := m.Get(ctx, id); err != nil {
			return fmt.Errorf("walking user %d: %w", id, err)
		}
		stats.Requests++
		stats.CodesSeen++
	}
	return nil
}
