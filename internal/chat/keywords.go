package chat

import "strings"

// AuthPrompt is returned verbatim when a personalization keyword is found
// in an unauthenticated conversation.
const AuthPrompt = "Please log in to continue personalized assistance."

// personalizationKeywords mark requests that need an authenticated,
// personalized context. This is a heuristic gate, not a security control:
// the caller self-reports authentication and the decision is fully offline.
var personalizationKeywords = []string{
	"my report",
	"my records",
	"my prescription",
	"my appointment",
	"my doctor",
	"my patient",
	"my history",
	"my data",
	"my profile",
	"book appointment",
	"schedule",
	"save",
	"store",
	"remember me",
}

// NeedsPersonalization reports whether the message asks for something that
// only makes sense for a signed-in user. Matching is case-insensitive
// substring presence.
func NeedsPersonalization(content string) bool {
	lower := strings.ToLower(content)

	for _, keyword := range personalizationKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}
