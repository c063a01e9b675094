package usercode

import (
	"fmt"
	"regexp"
)

// Code length bounds shared by every settable code.
const (
	minCodeLength = 4
	maxCodeLength = 10
)

// legacyCodeRegex matches the only codes the legacy set accepts:
// 4 to 10 ASCII decimal digits.
var legacyCodeRegex = regexp.MustCompile(`^[0-9]{4,10}$`)

// ValidateSet checks a legacy set request against the device capabilities.
//
// Rules:
//   - userID must be within [0, SupportedUsers]
//   - userID 0 is legal only paired with status Available (clear all)
//   - StatusNotAvailable is never a settable target
//   - the status must be advertised by the device, except the implicit
//     Available used for clearing
//   - when the status is not Available, the code must be 4-10 ASCII
//     decimal digits
//
// Any violation fails with ErrInvalidArgument before a byte is built.
func ValidateSet(caps *CapabilitySet, code UserCode) error {
	if err := validateTarget(caps, code); err != nil {
		return err
	}
	if code.Status == StatusAvailable {
		return nil
	}
	if !legacyCodeRegex.MatchString(code.Code) {
		return fmt.Errorf("%w: code must be 4-10 ASCII digits, got %d characters",
			ErrInvalidArgument, len(code.Code))
	}
	return nil
}

// ValidateExtendedSet checks an extended set request against the device
// capabilities.
//
// Extended entries follow the same target rules as the legacy set but draw
// their characters from the device-advertised character set instead of the
// fixed digit alphabet. More than one entry additionally requires the
// multiple-set capability.
func ValidateExtendedSet(caps *CapabilitySet, codes []UserCode) error {
	if len(codes) == 0 {
		return fmt.Errorf("%w: extended set requires at least one entry", ErrInvalidArgument)
	}
	if len(codes) > 1 && !caps.SupportsMultipleSet {
		return fmt.Errorf("%w: device does not support setting multiple codes per request", ErrInvalidArgument)
	}
	for _, uc := range codes {
		if err := validateTarget(caps, uc); err != nil {
			return err
		}
		if uc.Status == StatusAvailable {
			continue
		}
		if err := validateCodeChars(caps, uc.Code); err != nil {
			return fmt.Errorf("user %d: %w", uc.UserID, err)
		}
	}
	return nil
}

// ValidateMasterCodeSet checks a master code set request.
//
// An empty code deactivates the master code and requires the deactivation
// capability; otherwise the code follows the extended charset/length rules.
func ValidateMasterCodeSet(caps *CapabilitySet, code string) error {
	if code == "" {
		if !caps.SupportsMasterCodeDeactivation {
			return fmt.Errorf("%w: device does not support master code deactivation", ErrInvalidArgument)
		}
		return nil
	}
	return validateCodeChars(caps, code)
}

// ValidateKeypadModeSet checks that the device advertises the target mode.
func ValidateKeypadModeSet(caps *CapabilitySet, mode KeypadMode) error {
	if !caps.HasKeypadMode(mode) {
		return fmt.Errorf("%w: keypad mode %s not supported by device", ErrInvalidArgument, mode)
	}
	return nil
}

// validateTarget applies the slot rules shared by legacy and extended sets.
func validateTarget(caps *CapabilitySet, code UserCode) error {
	if code.UserID > caps.SupportedUsers {
		return fmt.Errorf("%w: user id %d outside [0, %d]",
			ErrInvalidArgument, code.UserID, caps.SupportedUsers)
	}
	if code.UserID == 0 && code.Status != StatusAvailable {
		return fmt.Errorf("%w: user id 0 is only legal when clearing all codes", ErrInvalidArgument)
	}
	if code.Status == StatusNotAvailable {
		return fmt.Errorf("%w: status not_available is a report sentinel, not a settable target", ErrInvalidArgument)
	}
	if code.Status != StatusAvailable && !caps.HasStatus(code.Status) {
		return fmt.Errorf("%w: status %s not supported by device", ErrInvalidArgument, code.Status)
	}
	return nil
}

// validateCodeChars applies the device-charset and length rules used by
// extended and master codes.
func validateCodeChars(caps *CapabilitySet, code string) error {
	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return fmt.Errorf("%w: code length %d outside [%d, %d]",
			ErrInvalidArgument, len(code), minCodeLength, maxCodeLength)
	}
	for i := 0; i < len(code); i++ {
		if !caps.HasChar(code[i]) {
			return fmt.Errorf("%w: code character %q not in device character set",
				ErrInvalidArgument, code[i])
		}
	}
	return nil
}
