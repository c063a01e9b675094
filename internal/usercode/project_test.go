package usercode

import (
	"context"
	"testing"

	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

func TestProjectUserCode_Upsert(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()

	uc := UserCode{UserID: 3, Status: StatusEnabled, Code: "1234"}
	if err := m.projectUserCode(context.Background(), uc); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}

	statusKey := valuestore.Key{Endpoint: 0, Property: PropUserIDStatus, UserID: 3}
	codeKey := valuestore.Key{Endpoint: 0, Property: PropUserCode, UserID: 3}

	if got := store.values[statusKey]; got != int(StatusEnabled) {
		t.Errorf("status value = %v, want %d", got, int(StatusEnabled))
	}
	if got := store.values[codeKey]; got != "1234" {
		t.Errorf("code value = %v, want 1234", got)
	}

	// Metadata is created on first sight.
	statusMeta := store.metadata[statusKey]
	if statusMeta == nil || statusMeta.Kind != valuestore.MetadataEnum {
		t.Fatalf("status metadata = %+v, want enum", statusMeta)
	}
	if len(statusMeta.States) != len(fullCaps().SupportedStatuses) {
		t.Errorf("status metadata states = %v", statusMeta.States)
	}
	codeMeta := store.metadata[codeKey]
	if codeMeta == nil || codeMeta.Kind != valuestore.MetadataString {
		t.Fatalf("code metadata = %+v, want string", codeMeta)
	}
	if codeMeta.MinLength != 4 || codeMeta.MaxLength != 10 {
		t.Errorf("code metadata lengths = [%d, %d], want [4, 10]", codeMeta.MinLength, codeMeta.MaxLength)
	}
}

func TestProjectUserCode_AvailableKeepsRecords(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()

	ctx := context.Background()
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusAvailable}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}

	statusKey := valuestore.Key{Endpoint: 0, Property: PropUserIDStatus, UserID: 3}
	codeKey := valuestore.Key{Endpoint: 0, Property: PropUserCode, UserID: 3}

	// An available slot remains a record: status available, empty code.
	if got := store.values[statusKey]; got != int(StatusAvailable) {
		t.Errorf("status value = %v, want %d", got, int(StatusAvailable))
	}
	if got := store.values[codeKey]; got != "" {
		t.Errorf("code value = %v, want empty string", got)
	}
}

func TestProjectUserCode_NotAvailableRemoves(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()

	ctx := context.Background()
	if err := m.projectUserCode(ctx, UserCode{UserID: 7, Status: StatusEnabled, Code: "2468"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if err := m.projectUserCode(ctx, UserCode{UserID: 7, Status: StatusNotAvailable}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}

	statusKey := valuestore.Key{Endpoint: 0, Property: PropUserIDStatus, UserID: 7}
	codeKey := valuestore.Key{Endpoint: 0, Property: PropUserCode, UserID: 7}

	if _, ok := store.values[statusKey]; ok {
		t.Error("status record still present after not_available")
	}
	if _, ok := store.values[codeKey]; ok {
		t.Error("code record still present after not_available")
	}
	if _, ok := store.metadata[statusKey]; ok {
		t.Error("status metadata still present after not_available")
	}
}

func TestProjectUserCode_NotAvailableIdempotent(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()

	ctx := context.Background()

	// Removing a slot that was never seen creates nothing and does not fail.
	if err := m.projectUserCode(ctx, UserCode{UserID: 9, Status: StatusNotAvailable}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if err := m.projectUserCode(ctx, UserCode{UserID: 9, Status: StatusNotAvailable}); err != nil {
		t.Fatalf("repeat projectUserCode() error = %v", err)
	}
	if len(store.values) != 0 || len(store.metadata) != 0 {
		t.Errorf("store not empty: %d values, %d metadata", len(store.values), len(store.metadata))
	}
}

func TestProjectUserCode_MetadataCreatedOnce(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()

	ctx := context.Background()
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}

	statusKey := valuestore.Key{Endpoint: 0, Property: PropUserIDStatus, UserID: 3}
	created := store.metadata[statusKey]

	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusDisabled, Code: "5678"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if store.metadata[statusKey] != created {
		t.Error("status metadata replaced on repeat projection")
	}
}

func TestProjectUserCode_DropsUserIDZero(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()
	recorder := &fakeRecorder{}
	m.SetRecorder(recorder)

	// User id 0 is the clear-all broadcast address, never a slot.
	if err := m.projectUserCode(context.Background(), UserCode{UserID: 0, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}

	if len(store.values) != 0 || len(store.metadata) != 0 {
		t.Errorf("user id 0 persisted: %d values, %d metadata", len(store.values), len(store.metadata))
	}
	if len(recorder.events) != 0 {
		t.Errorf("user id 0 produced %d events, want 0", len(recorder.events))
	}
}

func TestProjectUserCode_RecordsStatusTransitions(t *testing.T) {
	store := newFakeStore()
	m := NewManager(4, 2, newFakeTransport(), store)
	m.caps = fullCaps()
	recorder := &fakeRecorder{}
	m.SetRecorder(recorder)

	ctx := context.Background()

	// First sight is a transition.
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 1 {
		t.Fatalf("events = %d, want 1", len(recorder.events))
	}
	if e := recorder.events[0]; e.endpoint != 4 || e.userID != 3 || e.status != StatusEnabled {
		t.Errorf("event = %+v, want endpoint 4 user 3 enabled", e)
	}

	// Re-projecting the same status is not a transition.
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 1 {
		t.Errorf("events after repeat = %d, want 1", len(recorder.events))
	}

	// A status change is.
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusDisabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 2 || recorder.events[1].status != StatusDisabled {
		t.Fatalf("events = %+v, want disabled transition", recorder.events)
	}

	// Removing an existing slot is, too.
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusNotAvailable}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 3 || recorder.events[2].status != StatusNotAvailable {
		t.Fatalf("events = %+v, want not_available transition", recorder.events)
	}

	// Removing an absent slot is not.
	if err := m.projectUserCode(ctx, UserCode{UserID: 3, Status: StatusNotAvailable}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 3 {
		t.Errorf("events after repeat removal = %d, want 3", len(recorder.events))
	}
}

func TestProjectUserCode_ReloadedStatusSuppressesDuplicateEvent(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	m.caps = fullCaps()
	recorder := &fakeRecorder{}
	m.SetRecorder(recorder)

	// Statuses reloaded from persistence arrive as float64.
	statusKey := valuestore.Key{Endpoint: 0, Property: PropUserIDStatus, UserID: 5}
	store.values[statusKey] = float64(StatusEnabled)

	if err := m.projectUserCode(context.Background(), UserCode{UserID: 5, Status: StatusEnabled, Code: "1234"}); err != nil {
		t.Fatalf("projectUserCode() error = %v", err)
	}
	if len(recorder.events) != 0 {
		t.Errorf("events = %d, want 0 for unchanged reloaded status", len(recorder.events))
	}
}

func TestProjectCapabilities(t *testing.T) {
	store := newFakeStore()
	m := NewManager(2, 2, newFakeTransport(), store)
	caps := fullCaps()
	m.caps = caps

	if err := m.projectCapabilities(context.Background(), caps); err != nil {
		t.Fatalf("projectCapabilities() error = %v", err)
	}

	key := func(prop string) valuestore.Key {
		return valuestore.Key{Endpoint: 2, Property: prop}
	}

	if got := store.values[key(PropSupportsMasterCode)]; got != true {
		t.Errorf("%s = %v, want true", PropSupportsMasterCode, got)
	}
	if got := store.values[key(PropSupportsUserCodeChecksum)]; got != true {
		t.Errorf("%s = %v, want true", PropSupportsUserCodeChecksum, got)
	}
	if got := store.values[key(PropSupportedASCIIChars)]; got != "0123456789" {
		t.Errorf("%s = %v, want digits", PropSupportedASCIIChars, got)
	}
	statuses, ok := store.values[key(PropSupportedUserIDStatuses)].([]int)
	if !ok || len(statuses) != len(caps.SupportedStatuses) {
		t.Errorf("%s = %v", PropSupportedUserIDStatuses, store.values[key(PropSupportedUserIDStatuses)])
	}
}

func TestProjectKeypadMode_RefreshesMetadata(t *testing.T) {
	store := newFakeStore()
	m := NewManager(0, 2, newFakeTransport(), store)
	caps := fullCaps()
	caps.SupportedKeypadModes = []KeypadMode{ModeNormal, ModeVacation}
	m.caps = caps

	if err := m.projectKeypadMode(context.Background(), ModeVacation); err != nil {
		t.Fatalf("projectKeypadMode() error = %v", err)
	}

	modeKey := valuestore.Key{Endpoint: 0, Property: PropKeypadMode}
	if got := store.values[modeKey]; got != int(ModeVacation) {
		t.Errorf("mode value = %v, want %d", got, int(ModeVacation))
	}
	meta := store.metadata[modeKey]
	if meta == nil || meta.Kind != valuestore.MetadataEnum || len(meta.States) != 2 {
		t.Errorf("mode metadata = %+v", meta)
	}
}
