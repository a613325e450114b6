package identity

import "testing"

func TestNormalizeLicense(t *testing.T) {
	tests := []struct {
		name    string
		license string
		want    string
	}{
		{name: "already_clean", license: "md12345", want: "md12345"},
		{name: "uppercase", license: "MD12345", want: "md12345"},
		{name: "spaces_and_dashes", license: "MD-123 45", want: "md12345"},
		{name: "unicode_and_symbols", license: "MD_123/45_ÄÖ", want: "md12345"},
		{name: "digits_only", license: "0042", want: "0042"},
		{name: "nothing_left", license: "---", want: ""},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLicense(tt.license)

			if got != tt.want {
				t.Fatalf("NormalizeLicense(%q) = %q, want %q", tt.license, got, tt.want)
			}
		})
	}
}

func TestPseudoEmail(t *testing.T) {
	got := PseudoEmail("MD-123 45")
	want := "md12345@doctor.medicare.local"

	if got != want {
		t.Fatalf("PseudoEmail = %q, want %q", got, want)
	}
}

// two licenses that normalize to the same string must map to the same
// pseudo-email, that is what the duplicate-license check relies on
func TestPseudoEmailCollision(t *testing.T) {
	if PseudoEmail("MD-1") != PseudoEmail("md1") {
		t.Fatal("expected equivalent licenses to produce identical pseudo-emails")
	}
}
