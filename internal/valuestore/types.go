package valuestore

import "time"

// Key addresses one persisted value: an endpoint, a property name, and an
// optional per-user sub-index. UserID 0 means "no sub-index"; per-user
// properties never use slot 0, which is a protocol control value.
type Key struct {
	// Endpoint is the addressable sub-unit of the device.
	Endpoint uint8

	// Property names the fact being stored (e.g. "userIdStatus").
	Property string

	// UserID is the per-user sub-index, or 0 for endpoint-scoped values.
	UserID uint16
}

// Record is one persisted value with its update timestamp.
type Record struct {
	Key       Key
	Value     any
	UpdatedAt time.Time
}

// MetadataKind discriminates the shape a value's metadata describes.
type MetadataKind string

// Metadata kinds.
const (
	// MetadataEnum describes a value drawn from an enumerated state set.
	MetadataEnum MetadataKind = "enum"

	// MetadataString describes a string value with length bounds.
	MetadataString MetadataKind = "string"
)

// Metadata describes the shape of a value so consumers can present or
// validate it without protocol knowledge.
type Metadata struct {
	// Kind selects which of the remaining fields apply.
	Kind MetadataKind `json:"kind"`

	// States lists the allowed values for MetadataEnum.
	States []int `json:"states,omitempty"`

	// MinLength and MaxLength bound the value for MetadataString.
	MinLength int `json:"min_length,omitempty"`
	MaxLength int `json:"max_length,omitempty"`
}

// Validate checks that the key is usable as a storage address.
func (k Key) Validate() error {
	if k.Property == "" {
		return ErrInvalidKey
	}
	return nil
}
