package usercode

import (
	"context"
	"fmt"

	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

// Property names under which decoded facts are persisted. Per-user
// properties carry the user id as the key's sub-index; everything else is
// endpoint-scoped.
const (
	PropUserIDStatus = "userIdStatus"
	PropUserCode     = "userCode"

	PropUserCodeChecksum = "userCodeChecksum"
	PropKeypadMode       = "keypadMode"
	PropMasterCode       = "masterCode"
	PropSupportedUsers   = "supportedUsers"

	PropSupportsMasterCode             = "supportsMasterCode"
	PropSupportsMasterCodeDeactivation = "supportsMasterCodeDeactivation"
	PropSupportsUserCodeChecksum       = "supportsUserCodeChecksum"
	PropSupportsMultipleUserCodeReport = "supportsMultipleUserCodeReport"
	PropSupportsMultipleUserCodeSet    = "supportsMultipleUserCodeSet"
	PropSupportedUserIDStatuses        = "supportedUserIdStatuses"
	PropSupportedKeypadModes           = "supportedKeypadModes"
	PropSupportedASCIIChars            = "supportedASCIIChars"
)

// key builds a store key for an endpoint-scoped property.
func (m *Manager) key(property string) valuestore.Key {
	return valuestore.Key{Endpoint: m.endpoint, Property: property}
}

// userKey builds a store key for a per-user property.
func (m *Manager) userKey(property string, userID uint16) valuestore.Key {
	return valuestore.Key{Endpoint: m.endpoint, Property: property, UserID: userID}
}

// projectUserCode maps one decoded slot onto the canonical store records.
//
// User id 0 is the clear-all broadcast address, never a slot; a report
// entry carrying it is dropped so no record is persisted for it. A
// StatusNotAvailable sentinel removes the slot's records and metadata;
// removal of an absent slot is a no-op and creates nothing. Any other
// status lazily creates the slot's metadata on first sight and upserts the
// status and code records. Status transitions are handed to the recorder.
func (m *Manager) projectUserCode(ctx context.Context, code UserCode) error {
	if code.UserID == 0 {
		m.logger.Warn("dropping report entry for user id 0",
			"endpoint", m.endpoint,
			"status", int(code.Status),
		)
		return nil
	}

	statusKey := m.userKey(PropUserIDStatus, code.UserID)
	codeKey := m.userKey(PropUserCode, code.UserID)
	previous, hadStatus := m.slotStatus(ctx, statusKey)

	if code.Status == StatusNotAvailable {
		if err := m.store.Remove(ctx, statusKey); err != nil {
			return fmt.Errorf("removing status for user %d: %w", code.UserID, err)
		}
		if err := m.store.Remove(ctx, codeKey); err != nil {
			return fmt.Errorf("removing code for user %d: %w", code.UserID, err)
		}
		if err := m.store.SetMetadata(ctx, statusKey, nil); err != nil {
			return fmt.Errorf("removing status metadata for user %d: %w", code.UserID, err)
		}
		if err := m.store.SetMetadata(ctx, codeKey, nil); err != nil {
			return fmt.Errorf("removing code metadata for user %d: %w", code.UserID, err)
		}
		if hadStatus {
			m.recordCodeEvent(code.UserID, code.Status)
		}
		return nil
	}

	if err := m.ensureUserMetadata(ctx, statusKey, codeKey); err != nil {
		return err
	}

	if err := m.store.Set(ctx, statusKey, int(code.Status)); err != nil {
		return fmt.Errorf("storing status for user %d: %w", code.UserID, err)
	}
	if err := m.store.Set(ctx, codeKey, code.Code); err != nil {
		return fmt.Errorf("storing code for user %d: %w", code.UserID, err)
	}

	if !hadStatus || previous != code.Status {
		m.recordCodeEvent(code.UserID, code.Status)
	}
	return nil
}

// slotStatus reads a slot's persisted status, if any. Values reloaded
// from persistence arrive as float64.
func (m *Manager) slotStatus(ctx context.Context, statusKey valuestore.Key) (UserIDStatus, bool) {
	value, ok := m.store.Get(ctx, statusKey)
	if !ok {
		return 0, false
	}
	n, isNum := asInt(value)
	if !isNum {
		return 0, false
	}
	return UserIDStatus(n), true
}

// recordCodeEvent forwards a slot status transition to the recorder,
// when one is configured.
func (m *Manager) recordCodeEvent(userID uint16, status UserIDStatus) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordCodeEvent(m.endpoint, userID, status)
}

// ensureUserMetadata creates the slot's metadata the first time the slot
// is seen: enumerated states derived from the supported status set, and
// length-bounded string metadata for the code.
func (m *Manager) ensureUserMetadata(ctx context.Context, statusKey, codeKey valuestore.Key) error {
	if !m.store.HasMetadata(ctx, statusKey) {
		meta := &valuestore.Metadata{Kind: valuestore.MetadataEnum, States: m.statusStates()}
		if err := m.store.SetMetadata(ctx, statusKey, meta); err != nil {
			return fmt.Errorf("creating status metadata: %w", err)
		}
	}
	if !m.store.HasMetadata(ctx, codeKey) {
		meta := &valuestore.Metadata{
			Kind:      valuestore.MetadataString,
			MinLength: minCodeLength,
			MaxLength: maxCodeLength,
		}
		if err := m.store.SetMetadata(ctx, codeKey, meta); err != nil {
			return fmt.Errorf("creating code metadata: %w", err)
		}
	}
	return nil
}

// statusStates returns the enumerated status values for slot metadata,
// from the probed capability set when present.
func (m *Manager) statusStates() []int {
	if m.caps == nil || len(m.caps.SupportedStatuses) == 0 {
		return []int{int(StatusAvailable), int(StatusEnabled), int(StatusDisabled)}
	}
	states := make([]int, len(m.caps.SupportedStatuses))
	for i, s := range m.caps.SupportedStatuses {
		states[i] = int(s)
	}
	return states
}

// projectCapabilities persists the capability facts as endpoint-scoped
// scalar and collection records.
func (m *Manager) projectCapabilities(ctx context.Context, caps *CapabilitySet) error {
	statuses := make([]int, len(caps.SupportedStatuses))
	for i, s := range caps.SupportedStatuses {
		statuses[i] = int(s)
	}
	modes := make([]int, len(caps.SupportedKeypadModes))
	for i, kp := range caps.SupportedKeypadModes {
		modes[i] = int(kp)
	}

	facts := map[string]any{
		PropSupportsMasterCode:             caps.SupportsMasterCode,
		PropSupportsMasterCodeDeactivation: caps.SupportsMasterCodeDeactivation,
		PropSupportsUserCodeChecksum:       caps.SupportsChecksum,
		PropSupportsMultipleUserCodeReport: caps.SupportsMultipleReport,
		PropSupportsMultipleUserCodeSet:    caps.SupportsMultipleSet,
		PropSupportedUserIDStatuses:        statuses,
		PropSupportedKeypadModes:           modes,
		PropSupportedASCIIChars:            caps.SupportedASCIIChars,
	}
	for property, value := range facts {
		if err := m.store.Set(ctx, m.key(property), value); err != nil {
			return fmt.Errorf("storing %s: %w", property, err)
		}
	}
	return nil
}

// projectUsersCount persists the supported slot count.
func (m *Manager) projectUsersCount(ctx context.Context, count uint16) error {
	if err := m.store.Set(ctx, m.key(PropSupportedUsers), int(count)); err != nil {
		return fmt.Errorf("storing supported users: %w", err)
	}
	return nil
}

// projectChecksum persists the device's user-code checksum.
func (m *Manager) projectChecksum(ctx context.Context, checksum uint16) error {
	if err := m.store.Set(ctx, m.key(PropUserCodeChecksum), int(checksum)); err != nil {
		return fmt.Errorf("storing checksum: %w", err)
	}
	return nil
}

// projectKeypadMode persists the keypad mode and refreshes its enumerated
// metadata from the currently known supported-mode set.
func (m *Manager) projectKeypadMode(ctx context.Context, mode KeypadMode) error {
	modeKey := m.key(PropKeypadMode)

	states := []int{int(ModeNormal)}
	if m.caps != nil && len(m.caps.SupportedKeypadModes) > 0 {
		states = make([]int, len(m.caps.SupportedKeypadModes))
		for i, kp := range m.caps.SupportedKeypadModes {
			states[i] = int(kp)
		}
	}
	meta := &valuestore.Metadata{Kind: valuestore.MetadataEnum, States: states}
	if err := m.store.SetMetadata(ctx, modeKey, meta); err != nil {
		return fmt.Errorf("storing keypad mode metadata: %w", err)
	}

	if err := m.store.Set(ctx, modeKey, int(mode)); err != nil {
		return fmt.Errorf("storing keypad mode: %w", err)
	}
	return nil
}

// projectMasterCode persists the master code.
func (m *Manager) projectMasterCode(ctx context.Context, code string) error {
	if err := m.store.Set(ctx, m.key(PropMasterCode), code); err != nil {
		return fmt.Errorf("storing master code: %w", err)
	}
	return nil
}
