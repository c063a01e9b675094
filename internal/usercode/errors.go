package usercode

import "errors"

// Domain errors for the user-code feature module.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, usercode.ErrInvalidArgument) {
//	    // reject the caller's input
//	}
var (
	// ErrMalformedPayload is returned when a received report is shorter than
	// required at some offset, or a declared length field exceeds the
	// remaining payload. The exchange fails; the module never retries.
	ErrMalformedPayload = errors.New("usercode: malformed payload")

	// ErrUnsupportedCapability is returned when an operation is requested
	// that the device has not advertised. Nothing is transmitted.
	ErrUnsupportedCapability = errors.New("usercode: capability not supported by device")

	// ErrInvalidArgument is returned when a field value is outside its
	// allowed domain (user id range, status membership, code charset or
	// length, multi-set policy). Nothing is transmitted.
	ErrInvalidArgument = errors.New("usercode: invalid argument")

	// ErrPreconditionNotMet is returned when an operation requires a
	// completed capability probe and none has occurred.
	ErrPreconditionNotMet = errors.New("usercode: capability probe required first")
)
