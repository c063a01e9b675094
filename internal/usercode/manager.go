package usercode

import (
	"context"
	"fmt"

	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

// Transport is the session collaborator that carries frames to the device
// and matches reports to the requests that solicited them. Retries,
// timeouts, queuing and prioritisation live behind this interface; the
// feature module assumes at most one outstanding exchange per call.
type Transport interface {
	// Exchange sends a request and waits for its matching report.
	Exchange(ctx context.Context, req Frame) (Frame, error)

	// Send transmits a request that solicits no report (set-family).
	Send(ctx context.Context, req Frame) error
}

// ValueStore is the persisted store collaborator the module projects
// decoded facts into. Implemented by valuestore.Store; the module owns the
// user-code keys it writes and treats the store as last-write-wins.
type ValueStore interface {
	Get(ctx context.Context, key valuestore.Key) (any, bool)
	Set(ctx context.Context, key valuestore.Key, value any) error
	Remove(ctx context.Context, key valuestore.Key) error
	SetMetadata(ctx context.Context, key valuestore.Key, meta *valuestore.Metadata) error
	HasMetadata(ctx context.Context, key valuestore.Key) bool
}

// Logger defines the logging interface used by the Manager.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives telemetry. Implementations must not block;
// recording failures are the recorder's problem, not the caller's.
type Recorder interface {
	// RecordSync receives the outcome of one synchronization run.
	RecordSync(stats SyncStats)

	// RecordCodeEvent receives one slot status transition observed
	// while projecting device reports.
	RecordCodeEvent(endpoint uint8, userID uint16, status UserIDStatus)
}

// Manager is the capability query surface for one endpoint's user codes.
//
// Every operation verifies the target capability is advertised before
// building a request and fails fast otherwise. Operations that depend on
// probed capabilities return ErrPreconditionNotMet until a capability
// probe has run (or cached probe results are found in the store).
//
// The Manager is not reentrant per endpoint: callers must serialize
// synchronization runs themselves.
type Manager struct {
	endpoint  uint8
	version   int
	transport Transport
	store     ValueStore

	logger       Logger
	recorder     Recorder
	clearPadding bool

	// caps is populated by GetCapabilities/GetUsersCount or lazily from
	// cached store values. nil until then.
	caps *CapabilitySet
}

// NewManager creates a user-code manager for one endpoint.
//
// version is the device's protocol generation for this feature (1 or 2+);
// it selects between the legacy and extended request paths.
func NewManager(endpoint uint8, version int, transport Transport, store ValueStore) *Manager {
	return &Manager{
		endpoint:     endpoint,
		version:      version,
		transport:    transport,
		store:        store,
		logger:       noopLogger{},
		clearPadding: true,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetRecorder sets the telemetry recorder for synchronization runs and
// slot status transitions.
func (m *Manager) SetRecorder(recorder Recorder) {
	m.recorder = recorder
}

// SetClearPadding selects whether cleared slots are written with four null
// characters instead of an empty code. Some devices require the padding;
// the observed default is to send it.
func (m *Manager) SetClearPadding(pad bool) {
	m.clearPadding = pad
}

// Endpoint returns the endpoint this manager addresses.
func (m *Manager) Endpoint() uint8 {
	return m.endpoint
}

// GetUsersCount probes the number of supported user slots and persists it.
func (m *Manager) GetUsersCount(ctx context.Context) (uint16, error) {
	resp, err := m.exchange(ctx, EncodeUsersNumberGet())
	if err != nil {
		return 0, err
	}
	count, err := ParseUsersNumberReport(resp.Payload)
	if err != nil {
		return 0, err
	}
	if err := m.projectUsersCount(ctx, count); err != nil {
		return 0, err
	}
	if m.caps != nil {
		m.caps.SupportedUsers = count
	}
	m.logger.Debug("users number probed", "endpoint", m.endpoint, "supported_users", count)
	return count, nil
}

// GetCapabilities probes the device capability bitmasks, persists them and
// caches them for request validation. The supported-user count is carried
// over from the users-number probe.
func (m *Manager) GetCapabilities(ctx context.Context) (*CapabilitySet, error) {
	if m.version < 2 {
		return nil, fmt.Errorf("%w: capability report requires protocol version 2", ErrUnsupportedCapability)
	}

	resp, err := m.exchange(ctx, EncodeCapabilitiesGet())
	if err != nil {
		return nil, err
	}
	caps, err := ParseCapabilitiesReport(resp.Payload)
	if err != nil {
		return nil, err
	}

	if m.caps != nil {
		caps.SupportedUsers = m.caps.SupportedUsers
	} else if count, ok := m.cachedInt(ctx, PropSupportedUsers); ok {
		caps.SupportedUsers = uint16(count)
	}

	m.caps = &caps
	if err := m.projectCapabilities(ctx, &caps); err != nil {
		return nil, err
	}

	m.logger.Info("capabilities probed",
		"endpoint", m.endpoint,
		"master_code", caps.SupportsMasterCode,
		"checksum", caps.SupportsChecksum,
		"statuses", len(caps.SupportedStatuses),
	)
	copied := caps
	return &copied, nil
}

// Get fetches a single user code.
//
// Protocol version 1 uses the legacy get (8-bit user id); version 2 and
// later use an extended get without pagination. Every accepted report is
// projected into the store before it is returned.
func (m *Manager) Get(ctx context.Context, userID uint16) (UserCode, error) {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return UserCode{}, err
	}
	if userID == 0 || userID > caps.SupportedUsers {
		return UserCode{}, fmt.Errorf("%w: user id %d outside [1, %d]",
			ErrInvalidArgument, userID, caps.SupportedUsers)
	}

	if m.version >= 2 {
		codes, _, err := m.extendedGet(ctx, userID, false)
		if err != nil {
			return UserCode{}, err
		}
		for _, uc := range codes {
			if uc.UserID == userID {
				return uc, nil
			}
		}
		return UserCode{}, fmt.Errorf("%w: report did not include user %d", ErrMalformedPayload, userID)
	}

	resp, err := m.exchange(ctx, EncodeGet(userID))
	if err != nil {
		return UserCode{}, err
	}
	code, err := ParseReport(resp.Payload)
	if err != nil {
		return UserCode{}, err
	}
	if err := m.projectUserCode(ctx, code); err != nil {
		return UserCode{}, err
	}
	return code, nil
}

// GetMultiple fetches user codes starting at startID, asking the device to
// report as many slots as it can. It returns the decoded slots and the
// nextUserId pagination pointer (0 means no more).
func (m *Manager) GetMultiple(ctx context.Context, startID uint16) ([]UserCode, uint16, error) {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return nil, 0, err
	}
	if m.version < 2 || !caps.SupportsMultipleReport {
		return nil, 0, fmt.Errorf("%w: device does not support multiple user code reports", ErrUnsupportedCapability)
	}
	if startID == 0 {
		return nil, 0, fmt.Errorf("%w: start user id must be at least 1", ErrInvalidArgument)
	}
	return m.extendedGet(ctx, startID, true)
}

// Set writes one user code.
//
// The request is validated against the probed capabilities before any byte
// is built; version 2 and later use the extended layout.
func (m *Manager) Set(ctx context.Context, userID uint16, status UserIDStatus, code string) error {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return err
	}
	uc := UserCode{UserID: userID, Status: status, Code: code}

	if m.version >= 2 {
		if err := ValidateExtendedSet(caps, []UserCode{uc}); err != nil {
			return err
		}
		if err := m.transport.Send(ctx, EncodeExtendedSet([]UserCode{uc}, m.clearPadding)); err != nil {
			return fmt.Errorf("sending extended set: %w", err)
		}
	} else {
		if err := ValidateSet(caps, uc); err != nil {
			return err
		}
		if err := m.transport.Send(ctx, EncodeSet(uc, m.clearPadding)); err != nil {
			return fmt.Errorf("sending set: %w", err)
		}
	}

	if userID == 0 {
		return m.projectClearAll(ctx, caps)
	}
	uc.Code = normalizeCode(uc)
	return m.projectUserCode(ctx, uc)
}

// SetMany writes several user codes in one extended set request.
// More than one entry requires the multiple-set capability.
func (m *Manager) SetMany(ctx context.Context, codes []UserCode) error {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return err
	}
	if m.version < 2 {
		return fmt.Errorf("%w: extended set requires protocol version 2", ErrUnsupportedCapability)
	}
	if err := ValidateExtendedSet(caps, codes); err != nil {
		return err
	}
	if err := m.transport.Send(ctx, EncodeExtendedSet(codes, m.clearPadding)); err != nil {
		return fmt.Errorf("sending extended set: %w", err)
	}

	for _, uc := range codes {
		uc.Code = normalizeCode(uc)
		if err := m.projectUserCode(ctx, uc); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties one slot, or every slot when userID is 0.
func (m *Manager) Clear(ctx context.Context, userID uint16) error {
	return m.Set(ctx, userID, StatusAvailable, "")
}

// GetKeypadMode fetches and persists the current keypad operating mode.
func (m *Manager) GetKeypadMode(ctx context.Context) (KeypadMode, error) {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return 0, err
	}
	if len(caps.SupportedKeypadModes) == 0 {
		return 0, fmt.Errorf("%w: device does not advertise keypad modes", ErrUnsupportedCapability)
	}

	resp, err := m.exchange(ctx, EncodeKeypadModeGet())
	if err != nil {
		return 0, err
	}
	mode, err := ParseKeypadModeReport(resp.Payload)
	if err != nil {
		return 0, err
	}
	if err := m.projectKeypadMode(ctx, mode); err != nil {
		return 0, err
	}
	return mode, nil
}

// SetKeypadMode writes the keypad operating mode.
func (m *Manager) SetKeypadMode(ctx context.Context, mode KeypadMode) error {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return err
	}
	if len(caps.SupportedKeypadModes) == 0 {
		return fmt.Errorf("%w: device does not advertise keypad modes", ErrUnsupportedCapability)
	}
	if err := ValidateKeypadModeSet(caps, mode); err != nil {
		return err
	}
	if err := m.transport.Send(ctx, EncodeKeypadModeSet(mode)); err != nil {
		return fmt.Errorf("sending keypad mode set: %w", err)
	}
	return m.projectKeypadMode(ctx, mode)
}

// GetMasterCode fetches and persists the privileged override code.
func (m *Manager) GetMasterCode(ctx context.Context) (string, error) {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return "", err
	}
	if !caps.SupportsMasterCode {
		return "", fmt.Errorf("%w: device does not support a master code", ErrUnsupportedCapability)
	}

	resp, err := m.exchange(ctx, EncodeMasterCodeGet())
	if err != nil {
		return "", err
	}
	code, err := ParseMasterCodeReport(resp.Payload)
	if err != nil {
		return "", err
	}
	if err := m.projectMasterCode(ctx, code); err != nil {
		return "", err
	}
	return code, nil
}

// SetMasterCode writes the privileged override code. An empty code
// deactivates it when the device supports deactivation.
func (m *Manager) SetMasterCode(ctx context.Context, code string) error {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return err
	}
	if !caps.SupportsMasterCode {
		return fmt.Errorf("%w: device does not support a master code", ErrUnsupportedCapability)
	}
	if err := ValidateMasterCodeSet(caps, code); err != nil {
		return err
	}
	if err := m.transport.Send(ctx, EncodeMasterCodeSet(code)); err != nil {
		return fmt.Errorf("sending master code set: %w", err)
	}
	return m.projectMasterCode(ctx, code)
}

// GetUserCodeChecksum fetches and persists the device's checksum over all
// stored user codes.
func (m *Manager) GetUserCodeChecksum(ctx context.Context) (uint16, error) {
	caps, err := m.capabilities(ctx)
	if err != nil {
		return 0, err
	}
	if !caps.SupportsChecksum {
		return 0, fmt.Errorf("%w: device does not support the user code checksum", ErrUnsupportedCapability)
	}

	resp, err := m.exchange(ctx, EncodeChecksumGet())
	if err != nil {
		return 0, err
	}
	checksum, err := ParseChecksumReport(resp.Payload)
	if err != nil {
		return 0, err
	}
	if err := m.projectChecksum(ctx, checksum); err != nil {
		return 0, err
	}
	return checksum, nil
}

// extendedGet performs one extended get exchange and projects every
// decoded slot.
func (m *Manager) extendedGet(ctx context.Context, startID uint16, reportMore bool) ([]UserCode, uint16, error) {
	resp, err := m.exchange(ctx, EncodeExtendedGet(startID, reportMore))
	if err != nil {
		return nil, 0, err
	}
	codes, next, err := ParseExtendedReport(resp.Payload)
	if err != nil {
		return nil, 0, err
	}
	for _, uc := range codes {
		if err := m.projectUserCode(ctx, uc); err != nil {
			return nil, 0, err
		}
	}
	return codes, next, nil
}

// projectClearAll projects the clear-all control operation: every slot the
// device exposes becomes available with no code.
func (m *Manager) projectClearAll(ctx context.Context, caps *CapabilitySet) error {
	for id := uint16(1); id <= caps.SupportedUsers; id++ {
		uc := UserCode{UserID: id, Status: StatusAvailable}
		if err := m.projectUserCode(ctx, uc); err != nil {
			return err
		}
	}
	return nil
}

// exchange sends a request and verifies the report answers it.
func (m *Manager) exchange(ctx context.Context, req Frame) (Frame, error) {
	expected, wantsReport := ResponseCommand(req.Command)
	resp, err := m.transport.Exchange(ctx, req)
	if err != nil {
		return Frame{}, fmt.Errorf("exchanging command 0x%02X: %w", req.Command, err)
	}
	if wantsReport && resp.Command != expected {
		return Frame{}, fmt.Errorf("%w: expected report 0x%02X, got 0x%02X",
			ErrMalformedPayload, expected, resp.Command)
	}
	return resp, nil
}

// capabilities returns the probed capability set, falling back to cached
// probe results in the store. Without either, operations fail with
// ErrPreconditionNotMet.
func (m *Manager) capabilities(ctx context.Context) (*CapabilitySet, error) {
	if m.caps != nil {
		return m.caps, nil
	}
	caps, ok := m.capabilitiesFromStore(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no capability probe results for endpoint %d",
			ErrPreconditionNotMet, m.endpoint)
	}
	m.caps = caps
	return caps, nil
}

// capabilitiesFromStore rebuilds the capability set from projected probe
// results. It requires at least the supported-user count to be present.
func (m *Manager) capabilitiesFromStore(ctx context.Context) (*CapabilitySet, bool) {
	count, ok := m.cachedInt(ctx, PropSupportedUsers)
	if !ok || count == 0 {
		return nil, false
	}

	caps := &CapabilitySet{SupportedUsers: uint16(count)}
	caps.SupportsMasterCode, _ = m.cachedBool(ctx, PropSupportsMasterCode)
	caps.SupportsMasterCodeDeactivation, _ = m.cachedBool(ctx, PropSupportsMasterCodeDeactivation)
	caps.SupportsChecksum, _ = m.cachedBool(ctx, PropSupportsUserCodeChecksum)
	caps.SupportsMultipleReport, _ = m.cachedBool(ctx, PropSupportsMultipleUserCodeReport)
	caps.SupportsMultipleSet, _ = m.cachedBool(ctx, PropSupportsMultipleUserCodeSet)

	for _, v := range m.cachedIntSlice(ctx, PropSupportedUserIDStatuses) {
		caps.SupportedStatuses = append(caps.SupportedStatuses, UserIDStatus(v))
	}
	for _, v := range m.cachedIntSlice(ctx, PropSupportedKeypadModes) {
		caps.SupportedKeypadModes = append(caps.SupportedKeypadModes, KeypadMode(v))
	}
	if chars, ok := m.store.Get(ctx, m.key(PropSupportedASCIIChars)); ok {
		if s, isString := chars.(string); isString {
			caps.SupportedASCIIChars = s
		}
	}

	return caps, true
}

// cachedInt reads an endpoint-scoped numeric value from the store.
// Values reloaded from persistence arrive as float64 (JSON).
func (m *Manager) cachedInt(ctx context.Context, property string) (int, bool) {
	value, ok := m.store.Get(ctx, m.key(property))
	if !ok {
		return 0, false
	}
	return asInt(value)
}

// cachedBool reads an endpoint-scoped boolean value from the store.
func (m *Manager) cachedBool(ctx context.Context, property string) (bool, bool) {
	value, ok := m.store.Get(ctx, m.key(property))
	if !ok {
		return false, false
	}
	b, isBool := value.(bool)
	return b, isBool
}

// cachedIntSlice reads an endpoint-scoped numeric collection from the
// store, tolerating both freshly set []int and reloaded []any values.
func (m *Manager) cachedIntSlice(ctx context.Context, property string) []int {
	value, ok := m.store.Get(ctx, m.key(property))
	if !ok {
		return nil
	}
	switch vs := value.(type) {
	case []int:
		return vs
	case []any:
		result := make([]int, 0, len(vs))
		for _, v := range vs {
			if n, isNum := asInt(v); isNum {
				result = append(result, n)
			}
		}
		return result
	default:
		return nil
	}
}

// asInt converts the numeric types a store value may carry.
func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// normalizeCode returns the code string a projected record should carry:
// cleared slots persist an empty string regardless of any null padding on
// the wire.
func normalizeCode(code UserCode) string {
	if code.Status == StatusAvailable {
		return ""
	}
	return code.Code
}
