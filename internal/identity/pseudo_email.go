package identity

import "strings"

// Doctors have no real inbox in the system; their account identifier is a
// pseudo-email derived from the license number.
const doctorEmailDomain = "doctor.medicare.local"

// NormalizeLicense lower-cases the license number and strips everything
// outside [a-z0-9]. Two licenses that normalize identically produce the
// same pseudo-email and therefore collide; the uniqueness check catches
// this at signup rather than at derivation.
func NormalizeLicense(licenseNumber string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(licenseNumber) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// PseudoEmail is a pure function of the license number.
func PseudoEmail(licenseNumber string) string {
	return NormalizeLicense(licenseNumber) + "@" + doctorEmailDomain
}
