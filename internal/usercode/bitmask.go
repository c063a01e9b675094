package usercode

import "fmt"

// Bit-mask layout: the mask encodes a set of consecutive integers starting
// at a caller-supplied base value. Relative value r (= v - base) occupies
// bit r mod 8 of byte r div 8.

// ParseBitMask decodes a bit-mask into the set of integers it represents.
//
// Parameters:
//   - mask: Raw mask bytes (may be empty, yielding an empty set)
//   - base: Value represented by bit 0 of byte 0
//
// Returns:
//   - []int: Present values in ascending order
func ParseBitMask(mask []byte, base int) []int {
	var values []int
	for i, b := range mask {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				values = append(values, base+i*8+bit)
			}
		}
	}
	return values
}

// EncodeBitMask encodes a set of integers into a bit-mask.
//
// The mask is sized to cover [base, max]; values outside that range are
// rejected. Used by tests and tooling; outbound requests in this module
// never carry masks.
//
// Parameters:
//   - values: The set to encode (order and duplicates are irrelevant)
//   - max: Highest value the mask must be able to represent
//   - base: Value represented by bit 0 of byte 0
//
// Returns:
//   - []byte: Encoded mask of ceil((max-base+1)/8) bytes
//   - error: If a value falls outside [base, max]
func EncodeBitMask(values []int, max, base int) ([]byte, error) {
	if max < base {
		return nil, fmt.Errorf("%w: bitmask max %d below base %d", ErrInvalidArgument, max, base)
	}
	mask := make([]byte, (max-base)/8+1)
	for _, v := range values {
		if v < base || v > max {
			return nil, fmt.Errorf("%w: bitmask value %d outside [%d, %d]", ErrInvalidArgument, v, base, max)
		}
		r := v - base
		mask[r/8] |= 1 << (r % 8)
	}
	return mask, nil
}
