package usercode

// CommandClass is the command-class identifier for the user-code feature
// module on the wire. Every frame exchanged by this package belongs to it.
const CommandClass byte = 0x63

// Command identifiers within the user-code command class.
const (
	// CmdSet writes a single user code (legacy layout, request only).
	CmdSet byte = 0x01

	// CmdGet requests a single user code (legacy layout).
	CmdGet byte = 0x02

	// CmdReport carries a single user code from the device.
	CmdReport byte = 0x03

	// CmdUsersNumberGet requests the number of supported user slots.
	CmdUsersNumberGet byte = 0x04

	// CmdUsersNumberReport carries the supported slot count (v1 8-bit or
	// v2 16-bit layout, distinguished by payload length).
	CmdUsersNumberReport byte = 0x05

	// CmdCapabilitiesGet requests the device capability bitmasks.
	CmdCapabilitiesGet byte = 0x06

	// CmdCapabilitiesReport carries flags plus status, keypad-mode and
	// character-set bitmasks.
	CmdCapabilitiesReport byte = 0x07

	// CmdKeypadModeSet writes the keypad operating mode.
	CmdKeypadModeSet byte = 0x08

	// CmdKeypadModeGet requests the current keypad operating mode.
	CmdKeypadModeGet byte = 0x09

	// CmdKeypadModeReport carries the current keypad operating mode.
	CmdKeypadModeReport byte = 0x0A

	// CmdExtendedSet writes one or more user codes with 16-bit user ids.
	CmdExtendedSet byte = 0x0B

	// CmdExtendedGet requests user codes starting at a 16-bit user id,
	// optionally asking the device to report more than one.
	CmdExtendedGet byte = 0x0C

	// CmdExtendedReport carries zero or more user codes plus the next
	// user id for pagination (0 means no more).
	CmdExtendedReport byte = 0x0D

	// CmdMasterCodeSet writes the privileged override code.
	CmdMasterCodeSet byte = 0x0E

	// CmdMasterCodeGet requests the privileged override code.
	CmdMasterCodeGet byte = 0x0F

	// CmdMasterCodeReport carries the privileged override code.
	CmdMasterCodeReport byte = 0x10

	// CmdChecksumGet requests the checksum over all stored user codes.
	CmdChecksumGet byte = 0x11

	// CmdChecksumReport carries the 16-bit user-code checksum.
	CmdChecksumReport byte = 0x12
)

// UserIDStatus describes the occupancy state of a user-code slot.
type UserIDStatus byte

// User id status values.
const (
	// StatusAvailable marks a slot as empty. It doubles as the implicit
	// status used when clearing a slot.
	StatusAvailable UserIDStatus = 0x00

	// StatusEnabled marks a slot as occupied and granting access.
	StatusEnabled UserIDStatus = 0x01

	// StatusDisabled marks a slot as occupied but not granting access.
	StatusDisabled UserIDStatus = 0x02

	// StatusMessaging marks a slot used for messaging workflows.
	StatusMessaging UserIDStatus = 0x03

	// StatusPassageMode marks a slot that toggles passage mode.
	StatusPassageMode UserIDStatus = 0x04

	// StatusNotAvailable is a sentinel reported for slots the device does
	// not expose. It is never a settable target and is never persisted.
	StatusNotAvailable UserIDStatus = 0xFE
)

// String returns a human-readable status name.
func (s UserIDStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusMessaging:
		return "messaging"
	case StatusPassageMode:
		return "passage_mode"
	case StatusNotAvailable:
		return "not_available"
	default:
		return "unknown"
	}
}

// KeypadMode describes the device-wide keypad operating mode.
type KeypadMode byte

// Keypad operating modes.
const (
	// ModeNormal is the regular operating mode.
	ModeNormal KeypadMode = 0x00

	// ModeVacation disables all user codes except the master code.
	ModeVacation KeypadMode = 0x01

	// ModePrivacy disables external code entry while occupied.
	ModePrivacy KeypadMode = 0x02

	// ModeLockedOut disables the keypad entirely.
	ModeLockedOut KeypadMode = 0x03
)

// String returns a human-readable mode name.
func (m KeypadMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeVacation:
		return "vacation"
	case ModePrivacy:
		return "privacy"
	case ModeLockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// UserCode is one user-code slot as decoded from or destined for the device.
type UserCode struct {
	// UserID identifies the slot. 0 is a control value meaning "all slots"
	// and is only legal in a clear operation.
	UserID uint16

	// Status is the slot occupancy state.
	Status UserIDStatus

	// Code is the ASCII access code. Empty for cleared slots.
	Code string
}

// CapabilitySet holds the per-endpoint facts learned from a capability
// probe. It is established once and refreshed only by an explicit re-probe.
type CapabilitySet struct {
	// SupportsMasterCode indicates the device has a privileged override code.
	SupportsMasterCode bool

	// SupportsMasterCodeDeactivation indicates the override code may be
	// deactivated by setting it to the empty string.
	SupportsMasterCodeDeactivation bool

	// SupportsChecksum indicates the device maintains a checksum over all
	// stored codes, enabling the resync shortcut.
	SupportsChecksum bool

	// SupportsMultipleReport indicates extended reports may carry more
	// than one slot per exchange.
	SupportsMultipleReport bool

	// SupportsMultipleSet indicates extended sets may carry more than one
	// slot per exchange.
	SupportsMultipleSet bool

	// SupportedStatuses lists the slot statuses the device accepts.
	SupportedStatuses []UserIDStatus

	// SupportedKeypadModes lists the keypad modes the device accepts.
	SupportedKeypadModes []KeypadMode

	// SupportedASCIIChars contains every character the device accepts in
	// extended and master codes, in ascending code-point order.
	SupportedASCIIChars string

	// SupportedUsers is the number of user-code slots, learned from the
	// users-number probe. It bounds every settable user id.
	SupportedUsers uint16
}

// HasStatus reports whether the device accepts the given slot status.
func (c *CapabilitySet) HasStatus(s UserIDStatus) bool {
	for _, v := range c.SupportedStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// HasKeypadMode reports whether the device accepts the given keypad mode.
func (c *CapabilitySet) HasKeypadMode(m KeypadMode) bool {
	for _, v := range c.SupportedKeypadModes {
		if v == m {
			return true
		}
	}
	return false
}

// HasChar reports whether the device accepts the given character in a code.
func (c *CapabilitySet) HasChar(ch byte) bool {
	for i := 0; i < len(c.SupportedASCIIChars); i++ {
		if c.SupportedASCIIChars[i] == ch {
			return true
		}
	}
	return false
}

// Frame is one request or report payload within the user-code command
// class. The transport collaborator is responsible for wrapping it in
// whatever session framing the gateway requires and for matching a report
// to the request that solicited it.
type Frame struct {
	// Command is the command identifier (CmdSet ... CmdChecksumReport).
	Command byte

	// Payload is the command-specific byte layout. May be empty.
	Payload []byte
}

// ResponseCommand returns the report command that answers the given
// request command, and whether the request solicits a report at all.
// Set-family commands do not.
func ResponseCommand(cmd byte) (byte, bool) {
	switch cmd {
	case CmdGet:
		return CmdReport, true
	case CmdUsersNumberGet:
		return CmdUsersNumberReport, true
	case CmdCapabilitiesGet:
		return CmdCapabilitiesReport, true
	case CmdKeypadModeGet:
		return CmdKeypadModeReport, true
	case CmdExtendedGet:
		return CmdExtendedReport, true
	case CmdMasterCodeGet:
		return CmdMasterCodeReport, true
	case CmdChecksumGet:
		return CmdChecksumReport, true
	default:
		return 0, false
	}
}
