package usercode

import (
	"context"
	"fmt"

	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

// fakeTransport serves scripted reports keyed by request command. Multiple
// responses for the same command are consumed in order, which is how the
// pagination tests script successive extended reports.
type fakeTransport struct {
	responses map[byte][]Frame
	sent      []Frame
	exchanged []Frame
	err       error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[byte][]Frame)}
}

// respond queues one report for the given request command.
func (t *fakeTransport) respond(requestCmd byte, report Frame) {
	t.responses[requestCmd] = append(t.responses[requestCmd], report)
}

func (t *fakeTransport) Exchange(_ context.Context, req Frame) (Frame, error) {
	if t.err != nil {
		return Frame{}, t.err
	}
	t.exchanged = append(t.exchanged, req)
	queue := t.responses[req.Command]
	if len(queue) == 0 {
		return Frame{}, fmt.Errorf("no scripted response for command 0x%02X", req.Command)
	}
	resp := queue[0]
	t.responses[req.Command] = queue[1:]
	return resp, nil
}

func (t *fakeTransport) Send(_ context.Context, req Frame) error {
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, req)
	return nil
}

// exchangeCount counts exchanges issued for one request command.
func (t *fakeTransport) exchangeCount(cmd byte) int {
	n := 0
	for _, f := range t.exchanged {
		if f.Command == cmd {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory ValueStore.
type fakeStore struct {
	values   map[valuestore.Key]any
	metadata map[valuestore.Key]*valuestore.Metadata
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   make(map[valuestore.Key]any),
		metadata: make(map[valuestore.Key]*valuestore.Metadata),
	}
}

func (s *fakeStore) Get(_ context.Context, key valuestore.Key) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeStore) Set(_ context.Context, key valuestore.Key, value any) error {
	s.values[key] = value
	return nil
}

func (s *fakeStore) Remove(_ context.Context, key valuestore.Key) error {
	delete(s.values, key)
	return nil
}

func (s *fakeStore) SetMetadata(_ context.Context, key valuestore.Key, meta *valuestore.Metadata) error {
	if meta == nil {
		delete(s.metadata, key)
		return nil
	}
	s.metadata[key] = meta
	return nil
}

func (s *fakeStore) HasMetadata(_ context.Context, key valuestore.Key) bool {
	_, ok := s.metadata[key]
	return ok
}

// fakeRecorder captures recorded sync runs and slot status events.
type fakeRecorder struct {
	runs   []SyncStats
	events []codeEvent
}

type codeEvent struct {
	endpoint uint8
	userID   uint16
	status   UserIDStatus
}

func (r *fakeRecorder) RecordSync(stats SyncStats) {
	r.runs = append(r.runs, stats)
}

func (r *fakeRecorder) RecordCodeEvent(endpoint uint8, userID uint16, status UserIDStatus) {
	r.events = append(r.events, codeEvent{endpoint: endpoint, userID: userID, status: status})
}

// fullCaps is a capability set with every feature enabled, used as the
// baseline for validation and manager tests.
func fullCaps() *CapabilitySet {
	return &CapabilitySet{
		SupportsMasterCode:             true,
		SupportsMasterCodeDeactivation: true,
		SupportsChecksum:               true,
		SupportsMultipleReport:         true,
		SupportsMultipleSet:            true,
		SupportedStatuses: []UserIDStatus{
			StatusAvailable, StatusEnabled, StatusDisabled, StatusMessaging, StatusPassageMode,
		},
		SupportedKeypadModes: []KeypadMode{ModeNormal, ModeVacation, ModePrivacy, ModeLockedOut},
		SupportedASCIIChars:  "0123456789",
		SupportedUsers:       20,
	}
}

// capabilitiesReportPayload builds the fullCaps capability report fixture:
// master code flags + 1-byte status mask, checksum/multiple flags + 1-byte
// keypad mask, and the 8-byte digit character mask.
func capabilitiesReportPayload() []byte {
	payload := []byte{
		0x80 | 0x40 | 0x01, // master code, deactivation, status mask length 1
		0x1F,               // statuses 0-4
		0x80 | 0x40 | 0x20 | 0x01, // checksum, multi report, multi set, keypad mask length 1
		0x0F, // modes 0-3
		0x08, // char mask length 8
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // chars 0-47 absent
		0xFF, // chars 48-55 ('0'-'7')
		0x03, // chars 56-57 ('8'-'9')
	}
	return payload
}
