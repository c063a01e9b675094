package usercode

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestParseBitMask(t *testing.T) {
	tests := []struct {
		name string
		mask []byte
		base int
		want []int
	}{
		{
			name: "empty mask",
			mask: nil,
			base: 0,
			want: nil,
		},
		{
			name: "single byte base zero",
			mask: []byte{0x1F},
			base: 0,
			want: []int{0, 1, 2, 3, 4},
		},
		{
			name: "sparse bits",
			mask: []byte{0x81},
			base: 0,
			want: []int{0, 7},
		},
		{
			name: "second byte offsets by eight",
			mask: []byte{0x00, 0x03},
			base: 0,
			want: []int{8, 9},
		},
		{
			name: "non-zero base shifts values",
			mask: []byte{0x05},
			base: 10,
			want: []int{10, 12},
		},
		{
			name: "ascii digits",
			mask: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x03},
			base: 0,
			want: []int{48, 49, 50, 51, 52, 53, 54, 55, 56, 57},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBitMask(tt.mask, tt.base)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseBitMask() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeBitMask(t *testing.T) {
	tests := []struct {
		name    string
		values  []int
		max     int
		base    int
		want    []byte
		wantErr bool
	}{
		{
			name:   "empty set still sized to range",
			values: nil,
			max:    7,
			base:   0,
			want:   []byte{0x00},
		},
		{
			name:   "low bits",
			values: []int{0, 1, 2},
			max:    7,
			base:   0,
			want:   []byte{0x07},
		},
		{
			name:   "range spanning two bytes",
			values: []int{0, 9},
			max:    15,
			base:   0,
			want:   []byte{0x01, 0x02},
		},
		{
			name:   "non-zero base",
			values: []int{10, 12},
			max:    17,
			base:   10,
			want:   []byte{0x05},
		},
		{
			name:    "value below base",
			values:  []int{5},
			max:     15,
			base:    10,
			wantErr: true,
		},
		{
			name:    "value above max",
			values:  []int{20},
			max:     15,
			base:    0,
			wantErr: true,
		},
		{
			name:    "max below base",
			values:  nil,
			max:     5,
			base:    10,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeBitMask(tt.values, tt.max, tt.base)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeBitMask() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeBitMask() = % X, want % X", got, tt.want)
			}
		})
	}
}

// Round-trip: whatever EncodeBitMask produces, ParseBitMask recovers.
func TestBitMaskRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		max    int
		base   int
	}{
		{name: "statuses", values: []int{0, 1, 2, 3, 4}, max: 7, base: 0},
		{name: "keypad modes", values: []int{0, 2}, max: 3, base: 0},
		{name: "digits", values: []int{48, 49, 50, 51, 52, 53, 54, 55, 56, 57}, max: 127, base: 0},
		{name: "offset base", values: []int{100, 107, 115}, max: 120, base: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := EncodeBitMask(tt.values, tt.max, tt.base)
			if err != nil {
				t.Fatalf("EncodeBitMask() error = %v", err)
			}
			got := ParseBitMask(mask, tt.base)
			if !reflect.DeepEqual(got, tt.values) {
				t.Errorf("round trip = %v, want %v", got, tt.values)
			}
		})
	}
}
