package usercode

import (
	"context"
	"testing"

	"github.com/ironlatch/ironlatch-core/internal/valuestore"
)

// scriptFullProbe queues the probe exchanges of a full v2 run: users
// number, capabilities, master code, keypad mode and checksum.
func scriptFullProbe(transport *fakeTransport, users byte, checksum uint16) {
	transport.respond(CmdUsersNumberGet, Frame{Command: CmdUsersNumberReport, Payload: []byte{users}})
	transport.respond(CmdCapabilitiesGet, Frame{Command: CmdCapabilitiesReport, Payload: capabilitiesReportPayload()})
	transport.respond(CmdMasterCodeGet, Frame{Command: CmdMasterCodeReport, Payload: []byte{0x04, '9', '9', '9', '9'}})
	transport.respond(CmdKeypadModeGet, Frame{Command: CmdKeypadModeReport, Payload: []byte{0x00}})
	transport.respond(CmdChecksumGet, Frame{Command: CmdChecksumReport, Payload: []byte{byte(checksum >> 8), byte(checksum)}})
}

// extendedPage builds an extended report with one enabled slot and the
// given pagination pointer.
func extendedPage(userID, next uint16) Frame {
	payload := []byte{
		0x01,
		byte(userID >> 8), byte(userID),
		0x01, // enabled
		0x04, '1', '2', '3', '4',
		byte(next >> 8), byte(next),
	}
	return Frame{Command: CmdExtendedReport, Payload: payload}
}

func TestSynchronize_FullRunWalksAllPages(t *testing.T) {
	transport := newFakeTransport()
	scriptFullProbe(transport, 3, 0xABCD)
	transport.respond(CmdExtendedGet, extendedPage(1, 2))
	transport.respond(CmdExtendedGet, extendedPage(2, 3))
	transport.respond(CmdExtendedGet, extendedPage(3, 0))

	store := newFakeStore()
	m := NewManager(0, 2, transport, store)

	stats, err := m.Synchronize(context.Background(), true)
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	if !stats.Full {
		t.Error("Full = false, want true")
	}
	if stats.Skipped {
		t.Error("Skipped = true: first run has no cached checksum to match")
	}
	if stats.CodesSeen != 3 {
		t.Errorf("CodesSeen = %d, want 3", stats.CodesSeen)
	}
	if transport.exchangeCount(CmdExtendedGet) != 3 {
		t.Errorf("extended gets = %d, want 3", transport.exchangeCount(CmdExtendedGet))
	}

	// All three slots projected.
	for id := uint16(1); id <= 3; id++ {
		key := valuestore.Key{Endpoint: 0, Property: PropUserCode, UserID: id}
		if got := store.values[key]; got != "1234" {
			t.Errorf("slot %d code = %v, want 1234", id, got)
		}
	}
}

func TestSynchronize_ChecksumShortcutSkipsWalk(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	// First full run populates the cache, including the checksum.
	transport := newFakeTransport()
	scriptFullProbe(transport, 2, 0xABCD)
	transport.respond(CmdExtendedGet, extendedPage(1, 2))
	transport.respond(CmdExtendedGet, extendedPage(2, 0))
	m := NewManager(0, 2, transport, store)
	if _, err := m.Synchronize(ctx, true); err != nil {
		t.Fatalf("first Synchronize() error = %v", err)
	}

	// Second full run: device reports the same checksum, so the walk is
	// skipped and zero slot requests go out.
	transport = newFakeTransport()
	scriptFullProbe(transport, 2, 0xABCD)
	m = NewManager(0, 2, transport, store)

	stats, err := m.Synchronize(ctx, true)
	if err != nil {
		t.Fatalf("second Synchronize() error = %v", err)
	}
	if !stats.Skipped {
		t.Error("Skipped = false, want true for unchanged checksum")
	}
	if got := transport.exchangeCount(CmdExtendedGet); got != 0 {
		t.Errorf("extended gets = %d, want 0 after checksum match", got)
	}
	if stats.CodesSeen != 0 {
		t.Errorf("CodesSeen = %d, want 0", stats.CodesSeen)
	}
}

func TestSynchronize_ChangedChecksumForcesWalk(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	transport := newFakeTransport()
	scriptFullProbe(transport, 1, 0xABCD)
	transport.respond(CmdExtendedGet, extendedPage(1, 0))
	m := NewManager(0, 2, transport, store)
	if _, err := m.Synchronize(ctx, true); err != nil {
		t.Fatalf("first Synchronize() error = %v", err)
	}

	transport = newFakeTransport()
	scriptFullProbe(transport, 1, 0x1111)
	transport.respond(CmdExtendedGet, extendedPage(1, 0))
	m = NewManager(0, 2, transport, store)

	stats, err := m.Synchronize(ctx, true)
	if err != nil {
		t.Fatalf("second Synchronize() error = %v", err)
	}
	if stats.Skipped {
		t.Error("Skipped = true, want false for changed checksum")
	}
	if got := transport.exchangeCount(CmdExtendedGet); got != 1 {
		t.Errorf("extended gets = %d, want 1", got)
	}
}

func TestSynchronize_NoChecksumSupportAlwaysWalks(t *testing.T) {
	// Capability report without the checksum flag.
	capsPayload := []byte{
		0x01, // status mask length 1
		0x07, // statuses 0-2
		0x01, // keypad mask length 1, no optional flags
		0x01, // mode 0
		0x08,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x03,
	}

	transport := newFakeTransport()
	transport.respond(CmdUsersNumberGet, Frame{Command: CmdUsersNumberReport, Payload: []byte{1}})
	transport.respond(CmdCapabilitiesGet, Frame{Command: CmdCapabilitiesReport, Payload: capsPayload})
	transport.respond(CmdExtendedGet, extendedPage(1, 0))
	m := NewManager(0, 2, transport, newFakeStore())

	stats, err := m.Synchronize(context.Background(), true)
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}
	if stats.Skipped {
		t.Error("Skipped = true, want false without checksum support")
	}
	if got := transport.exchangeCount(CmdChecksumGet); got != 0 {
		t.Errorf("checksum gets = %d, want 0", got)
	}
}

func TestSynchronize_V1WalksEverySlot(t *testing.T) {
	transport := newFakeTransport()
	transport.respond(CmdUsersNumberGet, Frame{Command: CmdUsersNumberReport, Payload: []byte{3}})
	for id := byte(1); id <= 3; id++ {
		transport.respond(CmdGet, Frame{
			Command: CmdReport,
			Payload: []byte{id, 0x01, '1', '2', '3', '4'},
		})
	}

	store := newFakeStore()
	m := NewManager(0, 1, transport, store)

	stats, err := m.Synchronize(context.Background(), true)
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	if stats.CodesSeen != 3 {
		t.Errorf("CodesSeen = %d, want 3", stats.CodesSeen)
	}
	if got := transport.exchangeCount(CmdGet); got != 3 {
		t.Errorf("legacy gets = %d, want 3", got)
	}
	// No v2 probes on a v1 device.
	if got := transport.exchangeCount(CmdCapabilitiesGet); got != 0 {
		t.Errorf("capability gets = %d, want 0", got)
	}

	// The synthesised capability set is projected for later partial runs.
	key := valuestore.Key{Endpoint: 0, Property: PropSupportedASCIIChars}
	if got := store.values[key]; got != "0123456789" {
		t.Errorf("projected charset = %v, want digits", got)
	}
}

func TestSynchronize_PaginationStopsOnRevisit(t *testing.T) {
	transport := newFakeTransport()
	scriptFullProbe(transport, 5, 0xABCD)
	// The device points back at slot 1: the walk must stop, not loop.
	transport.respond(CmdExtendedGet, extendedPage(1, 2))
	transport.respond(CmdExtendedGet, extendedPage(2, 1))

	m := NewManager(0, 2, transport, newFakeStore())

	stats, err := m.Synchronize(context.Background(), true)
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}
	if got := transport.exchangeCount(CmdExtendedGet); got != 2 {
		t.Errorf("extended gets = %d, want 2", got)
	}
	if stats.CodesSeen != 2 {
		t.Errorf("CodesSeen = %d, want 2", stats.CodesSeen)
	}
}

func TestSynchronize_PaginationStopsBeyondSupportedUsers(t *testing.T) {
	transport := newFakeTransport()
	scriptFullProbe(transport, 2, 0xABCD)
	// Pointer past the supported slot count terminates the walk.
	transport.respond(CmdExtendedGet, extendedPage(1, 500))

	m := NewManager(0, 2, transport, newFakeStore())

	if _, err := m.Synchronize(context.Background(), true); err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}
	if got := transport.exchangeCount(CmdExtendedGet); got != 1 {
		t.Errorf("extended gets = %d, want 1", got)
	}
}

func TestSynchronize_PartialRunRequiresCachedProbe(t *testing.T) {
	m := NewManager(0, 2, newFakeTransport(), newFakeStore())

	_, err := m.Synchronize(context.Background(), false)
	if err == nil {
		t.Fatal("Synchronize(partial) should fail without cached probe results")
	}
}

func TestSynchronize_RecordsStats(t *testing.T) {
	transport := newFakeTransport()
	scriptFullProbe(transport, 1, 0xABCD)
	transport.respond(CmdExtendedGet, extendedPage(1, 0))

	recorder := &fakeRecorder{}
	m := NewManager(4, 2, transport, newFakeStore())
	m.SetRecorder(recorder)

	stats, err := m.Synchronize(context.Background(), true)
	if err != nil {
		t.Fatalf("Synchronize() error = %v", err)
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(recorder.runs))
	}
	run := recorder.runs[0]
	if run.RunID == "" || run.RunID != stats.RunID {
		t.Errorf("recorded RunID = %q, want %q", run.RunID, stats.RunID)
	}
	if run.Endpoint != 4 {
		t.Errorf("recorded Endpoint = %d, want 4", run.Endpoint)
	}
	if run.Duration <= 0 {
		t.Errorf("recorded Duration = %v, want > 0", run.Duration)
	}
}

func TestSynchronize_RecordsFailedRuns(t *testing.T) {
	transport := newFakeTransport()
	// No scripted responses: the users-number probe fails immediately.
	recorder := &fakeRecorder{}
	m := NewManager(0, 2, transport, newFakeStore())
	m.SetRecorder(recorder)

	if _, err := m.Synchronize(context.Background(), true); err == nil {
		t.Fatal("Synchronize() should fail without responses")
	}
	if len(recorder.runs) != 1 {
		t.Errorf("recorded runs = %d, want 1 even on failure", len(recorder.runs))
	}
}
