package types

import (
	"encoding/json"
	"testing"
)

func TestNewQuantityFromFloat64(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Quantity
	}{
		{"whole number", 5, 50_000},
		{"fractional", 2.5, 25_000},
		{"four decimals", 0.0001, 1},
		{"rounds beyond scale", 1.00005, 10_001},
		{"negative", -3.25, -32_500},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewQuantityFromFloat64(tt.in); got != tt.want {
				t.Errorf("NewQuantityFromFloat64(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuantityString(t *testing.T) {
	tests := []struct {
		q    Quantity
		want string
	}{
		{0, "0.0000"},
		{10_000, "1.0000"},
		{25_000, "2.5000"},
		{1, "0.0001"},
		{-32_500, "-3.2500"},
		{-1, "-0.0001"},
		{1_234_567, "123.4567"},
	}

	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("Quantity(%d).String() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestQuantityPredicates(t *testing.T) {
	pos := NewQuantityFromFloat64(1.5)
	neg := NewQuantityFromFloat64(-1.5)
	var zero Quantity

	if !pos.IsPositive() || pos.IsNegative() || pos.IsZero() {
		t.Errorf("positive quantity predicates wrong")
	}
	if !neg.IsNegative() || neg.IsPositive() || neg.IsZero() {
		t.Errorf("negative quantity predicates wrong")
	}
	if !zero.IsZero() || zero.IsPositive() || zero.IsNegative() {
		t.Errorf("zero quantity predicates wrong")
	}

	if pos.Neg() != neg {
		t.Errorf("Neg() = %v, want %v", pos.Neg(), neg)
	}
	if neg.Abs() != pos {
		t.Errorf("Abs() = %v, want %v", neg.Abs(), pos)
	}

	if f := pos.Float64(); f != 1.5 {
		t.Errorf("Float64() = %v, want 1.5", f)
	}
}

func TestQuantityMarshalJSON(t *testing.T) {
	type payload struct {
		Qty Quantity `json:"qty"`
	}

	b, err := json.Marshal(payload{Qty: NewQuantityFromFloat64(12.75)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Quantity serializes as a JSON number with 4 fractional digits.
	if string(b) != `{"qty":12.7500}` {
		t.Errorf("got %s", b)
	}
}

func TestQuantityUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Quantity
		wantErr bool
	}{
		{"number", `12.75`, 127_500, false},
		{"integer number", `40`, 400_000, false},
		{"quoted string", `"2.5"`, 25_000, false},
		{"negative", `-0.0001`, -1, false},
		{"null resets to zero", `null`, 0, false},
		{"truncates extra digits", `1.23456`, 12_345, false},
		{"pads short fraction", `1.2`, 12_000, false},
		{"garbage", `"abc"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tt.in), &q)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", q)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q != tt.want {
				t.Errorf("got %d, want %d", q, tt.want)
			}
		})
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	orig := NewQuantityFromFloat64(99.1234)

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var back Quantity
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != orig {
		t.Errorf("round trip changed value: %d -> %d", orig, back)
	}
}
