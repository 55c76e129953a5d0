package filter

import (
	"testing"

	"github.com/collectline/dunlin/internal/domain"
)

var languageOptions = []domain.FieldOption{
	{Code: "en", Value: "English"},
	{Code: "hi", Value: "Hindi"},
	{Code: "mr", Value: "Marathi"},
}

func TestEncode(t *testing.T) {
	r := NewResolver(languageOptions)

	t.Run("MapsCodesToValues", func(t *testing.T) {
		got := r.Encode([]string{"en", "HI"})
		want := []string{"English", "Hindi"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Encode[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("UnknownCodePassesThrough", func(t *testing.T) {
		got := r.Encode([]string{"zz"})
		if got[0] != "zz" {
			t.Errorf("Encode unknown = %q, want pass-through", got[0])
		}
	})
}

func TestDecodeMatcherPrecedence(t *testing.T) {
	// Options where the code of one entry equals a substring of another
	// entry's value exercise the precedence.
	options := []domain.FieldOption{
		{Code: "B1", Value: "1-30 DPD"},
		{Code: "B2", Value: "31-60 DPD"},
	}
	r := NewResolver(options)

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"exact code wins", "B1", "B1"},
		{"exact code case-insensitive", "b2", "B2"},
		{"exact display value", "1-30 DPD", "B1"},
		{"substring of display value", "31-60", "B2"},
		{"no match returns verbatim", "90+ DPD", "90+ DPD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Decode([]string{tt.value})
			if got[0] != tt.want {
				t.Errorf("Decode(%q) = %q, want %q", tt.value, got[0], tt.want)
			}
		})
	}
}

func TestDecodeNumericExact(t *testing.T) {
	options := []domain.FieldOption{
		{Code: "30", Value: "Thirty Days"},
		{Code: "300", Value: "Three Hundred Days"},
	}
	r := NewResolver(options)

	// "30" must match code "30" exactly, never code "300" by prefix.
	got := r.Decode([]string{"30"})
	if got[0] != "30" {
		t.Errorf("Decode(30) = %q, want 30", got[0])
	}
}

func TestDecodeEmptyOptionsIsIdentity(t *testing.T) {
	r := NewResolver(nil)

	values := []string{"English", "anything"}
	got := r.Decode(values)
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("Decode[%d] = %q, want %q", i, got[i], values[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := NewResolver(languageOptions)

	codes := []string{"en", "mr"}
	back := r.Decode(r.Encode(codes))

	for i := range codes {
		if back[i] != codes[i] {
			t.Errorf("round trip[%d] = %q, want %q", i, back[i], codes[i])
		}
	}
}
