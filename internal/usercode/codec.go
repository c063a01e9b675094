package usercode

import (
	"encoding/binary"
	"fmt"
)

// Wire layout constants. All multi-byte integers are big-endian.
const (
	// minReportLength is the smallest valid user-code report: user id,
	// status, and a 4-character code slot.
	minReportLength = 6

	// usersNumberV2Length is the minimum payload length at which the
	// users-number report carries a 16-bit count at offset 1 instead of
	// an 8-bit count at offset 0.
	usersNumberV2Length = 3

	// codeLengthMask extracts the code length nibble shared with reserved
	// bits in master-code and extended-set entry headers.
	codeLengthMask = 0x0F

	// Capability report byte 0: flags share the byte with the status
	// mask length nibble.
	capFlagMasterCode           = 0x80 // bit 7
	capFlagMasterCodeDeactivate = 0x40 // bit 6
	capStatusMaskLengthMask     = 0x1F // bits 4-0

	// Capability report flag byte after the status mask: flags share the
	// byte with the keypad mode mask length nibble.
	capFlagChecksum         = 0x80 // bit 7
	capFlagMultipleReport   = 0x40 // bit 6
	capFlagMultipleSet      = 0x20 // bit 5
	capKeypadMaskLengthMask = 0x1F // bits 4-0

	// extendedEntryHeaderLength covers user id (2), status (1) and the
	// code length byte (1) of one extended entry.
	extendedEntryHeaderLength = 4

	// clearedCode is the null-padded code some devices require in place
	// of an empty string when a slot is cleared.
	clearedCode = "\x00\x00\x00\x00"
)

// EncodeSet builds a legacy set request.
//
// Layout: [userId:1][status:1][code:N]. The code length is implied by the
// total payload length. When status is Available and nullPadClear is true,
// the code is replaced by four null characters (observed device behaviour;
// see the manager's clear-padding option).
//
// The caller is expected to have validated the fields (ValidateSet); the
// encoder itself only guarantees the layout.
func EncodeSet(code UserCode, nullPadClear bool) Frame {
	c := code.Code
	if code.Status == StatusAvailable {
		c = ""
		if nullPadClear {
			c = clearedCode
		}
	}
	payload := make([]byte, 2+len(c))
	payload[0] = byte(code.UserID)
	payload[1] = byte(code.Status)
	copy(payload[2:], c)
	return Frame{Command: CmdSet, Payload: payload}
}

// EncodeGet builds a legacy get request: [userId:1].
func EncodeGet(userID uint16) Frame {
	return Frame{Command: CmdGet, Payload: []byte{byte(userID)}}
}

// ParseReport decodes a legacy user-code report.
//
// Layout: [userId:1][status:1][code:rest]. Cleared slots are normalised to
// an empty code string regardless of any null padding the device sends.
//
// Returns:
//   - UserCode: The decoded slot
//   - error: ErrMalformedPayload if the payload is shorter than 6 bytes
func ParseReport(payload []byte) (UserCode, error) {
	if len(payload) < minReportLength {
		return UserCode{}, fmt.Errorf("%w: user code report too short (%d bytes, need at least %d)",
			ErrMalformedPayload, len(payload), minReportLength)
	}

	code := UserCode{
		UserID: uint16(payload[0]),
		Status: UserIDStatus(payload[1]),
		Code:   string(payload[2:]),
	}
	if code.Status == StatusAvailable || code.Status == StatusNotAvailable {
		code.Code = ""
	}
	return code, nil
}

// EncodeUsersNumberGet builds a users-number get request (no body).
func EncodeUsersNumberGet() Frame {
	return Frame{Command: CmdUsersNumberGet}
}

// ParseUsersNumberReport decodes the supported slot count.
//
// Two generations share the report: payloads of 3 or more bytes carry a
// 16-bit count at offset 1 (the byte at offset 0 is the legacy 8-bit count,
// kept for older controllers); shorter payloads carry only the 8-bit count
// at offset 0.
func ParseUsersNumberReport(payload []byte) (uint16, error) {
	if len(payload) >= usersNumberV2Length {
		return binary.BigEndian.Uint16(payload[1:3]), nil
	}
	if len(payload) >= 1 {
		return uint16(payload[0]), nil
	}
	return 0, fmt.Errorf("%w: users number report is empty", ErrMalformedPayload)
}

// EncodeCapabilitiesGet builds a capabilities get request (no body).
func EncodeCapabilitiesGet() Frame {
	return Frame{Command: CmdCapabilitiesGet}
}

// ParseCapabilitiesReport decodes the capability flags and bitmasks.
//
// Layout:
//
//	Byte 0:   bit 7 = supports master code
//	          bit 6 = supports master code deactivation
//	          bits 4-0 = status bitmask length N1
//	N1 bytes: supported status bitmask (base Available)
//	Byte:     bit 7 = supports checksum
//	          bit 6 = supports multiple report
//	          bit 5 = supports multiple set
//	          bits 4-0 = keypad mode bitmask length N2
//	N2 bytes: supported keypad mode bitmask (base Normal)
//	Byte:     character bitmask length N3
//	N3 bytes: supported character bitmask (bit positions are ASCII codes)
//
// Every length field is validated against the remaining payload before the
// mask is sliced. SupportedUsers is not part of this report; it is learned
// from the users-number probe.
func ParseCapabilitiesReport(payload []byte) (CapabilitySet, error) {
	var caps CapabilitySet

	if len(payload) < 1 {
		return caps, fmt.Errorf("%w: capabilities report is empty", ErrMalformedPayload)
	}
	caps.SupportsMasterCode = payload[0]&capFlagMasterCode != 0
	caps.SupportsMasterCodeDeactivation = payload[0]&capFlagMasterCodeDeactivate != 0

	statusMaskLen := int(payload[0] & capStatusMaskLengthMask)
	offset := 1
	if len(payload) < offset+statusMaskLen+1 {
		return caps, fmt.Errorf("%w: capabilities report truncated in status bitmask (declared %d bytes, %d remain)",
			ErrMalformedPayload, statusMaskLen, len(payload)-offset)
	}
	for _, v := range ParseBitMask(payload[offset:offset+statusMaskLen], int(StatusAvailable)) {
		caps.SupportedStatuses = append(caps.SupportedStatuses, UserIDStatus(v))
	}
	offset += statusMaskLen

	flags := payload[offset]
	caps.SupportsChecksum = flags&capFlagChecksum != 0
	caps.SupportsMultipleReport = flags&capFlagMultipleReport != 0
	caps.SupportsMultipleSet = flags&capFlagMultipleSet != 0

	keypadMaskLen := int(flags & capKeypadMaskLengthMask)
	offset++
	if len(payload) < offset+keypadMaskLen+1 {
		return caps, fmt.Errorf("%w: capabilities report truncated in keypad mode bitmask (declared %d bytes, %d remain)",
			ErrMalformedPayload, keypadMaskLen, len(payload)-offset)
	}
	for _, v := range ParseBitMask(payload[offset:offset+keypadMaskLen], int(ModeNormal)) {
		caps.SupportedKeypadModes = append(caps.SupportedKeypadModes, KeypadMode(v))
	}
	offset += keypadMaskLen

	charMaskLen := int(payload[offset])
	offset++
	if len(payload) < offset+charMaskLen {
		return caps, fmt.Errorf("%w: capabilities report truncated in character bitmask (declared %d bytes, %d remain)",
			ErrMalformedPayload, charMaskLen, len(payload)-offset)
	}
	chars := ParseBitMask(payload[offset:offset+charMaskLen], 0)
	buf := make([]byte, len(chars))
	for i, v := range chars {
		buf[i] = byte(v)
	}
	caps.SupportedASCIIChars = string(buf)

	return caps, nil
}

// EncodeKeypadModeSet builds a keypad mode set request: [mode:1].
func EncodeKeypadModeSet(mode KeypadMode) Frame {
	return Frame{Command: CmdKeypadModeSet, Payload: []byte{byte(mode)}}
}

// EncodeKeypadModeGet builds a keypad mode get request (no body).
func EncodeKeypadModeGet() Frame {
	return Frame{Command: CmdKeypadModeGet}
}

// ParseKeypadModeReport decodes the current keypad mode: [mode:1].
func ParseKeypadModeReport(payload []byte) (KeypadMode, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("%w: keypad mode report is empty", ErrMalformedPayload)
	}
	return KeypadMode(payload[0]), nil
}

// EncodeMasterCodeSet builds a master code set request.
//
// Layout: [length:1][code:length]. The length occupies the low nibble;
// the high nibble is reserved. An empty code deactivates the master code
// (requires the deactivation capability, checked by validation).
func EncodeMasterCodeSet(code string) Frame {
	payload := make([]byte, 1+len(code))
	payload[0] = byte(len(code)) & codeLengthMask
	copy(payload[1:], code)
	return Frame{Command: CmdMasterCodeSet, Payload: payload}
}

// EncodeMasterCodeGet builds a master code get request (no body).
func EncodeMasterCodeGet() Frame {
	return Frame{Command: CmdMasterCodeGet}
}

// ParseMasterCodeReport decodes the master code, mirroring the set layout.
func ParseMasterCodeReport(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", fmt.Errorf("%w: master code report is empty", ErrMalformedPayload)
	}
	length := int(payload[0] & codeLengthMask)
	if len(payload) < 1+length {
		return "", fmt.Errorf("%w: master code report truncated (declared %d bytes, %d remain)",
			ErrMalformedPayload, length, len(payload)-1)
	}
	return string(payload[1 : 1+length]), nil
}

// EncodeChecksumGet builds a checksum get request (no body).
func EncodeChecksumGet() Frame {
	return Frame{Command: CmdChecksumGet}
}

// ParseChecksumReport decodes the 16-bit user-code checksum at offset 0.
func ParseChecksumReport(payload []byte) (uint16, error) {
	if len(payload) < 2 {
		return 0, fmt.Errorf("%w: checksum report too short (%d bytes, need 2)",
			ErrMalformedPayload, len(payload))
	}
	return binary.BigEndian.Uint16(payload[0:2]), nil
}

// EncodeExtendedSet builds an extended set request for one or more slots.
//
// Layout: [count:1] then per entry [userId:2][status:1][length:1][code:length],
// the code length in the low nibble of its byte. Cleared entries (status
// Available) are encoded with either an empty code or null padding,
// matching the legacy set behaviour.
func EncodeExtendedSet(codes []UserCode, nullPadClear bool) Frame {
	payload := []byte{byte(len(codes))}
	for _, uc := range codes {
		c := uc.Code
		if uc.Status == StatusAvailable {
			c = ""
			if nullPadClear {
				c = clearedCode
			}
		}
		entry := make([]byte, extendedEntryHeaderLength+len(c))
		binary.BigEndian.PutUint16(entry[0:2], uc.UserID)
		entry[2] = byte(uc.Status)
		entry[3] = byte(len(c)) & codeLengthMask
		copy(entry[4:], c)
		payload = append(payload, entry...)
	}
	return Frame{Command: CmdExtendedSet, Payload: payload}
}

// EncodeExtendedGet builds an extended get request.
//
// Layout: [userId:2][reserved:1][reportMore:1]. When reportMore is set the
// device may answer with several slots and a pagination pointer.
func EncodeExtendedGet(userID uint16, reportMore bool) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], userID)
	if reportMore {
		payload[3] = 0x01
	}
	return Frame{Command: CmdExtendedGet, Payload: payload}
}

// ParseExtendedReport decodes an extended user-code report.
//
// Layout: [count:1] then count entries in the extended entry layout,
// followed by a trailing 16-bit nextUserId (0 signals no more slots).
// Every entry header and code length is validated against the remaining
// payload before it is read.
//
// Returns:
//   - []UserCode: Decoded slots (may be empty)
//   - uint16: nextUserId pagination pointer
//   - error: ErrMalformedPayload on any truncation
func ParseExtendedReport(payload []byte) ([]UserCode, uint16, error) {
	if len(payload) < 1 {
		return nil, 0, fmt.Errorf("%w: extended report is empty", ErrMalformedPayload)
	}
	count := int(payload[0])
	offset := 1

	codes := make([]UserCode, 0, count)
	for i := 0; i < count; i++ {
		if len(payload) < offset+extendedEntryHeaderLength {
			return nil, 0, fmt.Errorf("%w: extended report truncated in entry %d header (%d bytes remain)",
				ErrMalformedPayload, i, len(payload)-offset)
		}
		userID := binary.BigEndian.Uint16(payload[offset : offset+2])
		status := UserIDStatus(payload[offset+2])
		codeLen := int(payload[offset+3] & codeLengthMask)
		offset += extendedEntryHeaderLength

		if len(payload) < offset+codeLen {
			return nil, 0, fmt.Errorf("%w: extended report truncated in entry %d code (declared %d bytes, %d remain)",
				ErrMalformedPayload, i, codeLen, len(payload)-offset)
		}
		code := string(payload[offset : offset+codeLen])
		offset += codeLen

		if status == StatusAvailable || status == StatusNotAvailable {
			code = ""
		}
		codes = append(codes, UserCode{UserID: userID, Status: status, Code: code})
	}

	if len(payload) < offset+2 {
		return nil, 0, fmt.Errorf("%w: extended report missing next user id (%d bytes remain)",
			ErrMalformedPayload, len(payload)-offset)
	}
	nextUserID := binary.BigEndian.Uint16(payload[offset : offset+2])

	return codes, nextUserID, nil
}
