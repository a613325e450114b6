package chat

import "testing"

func TestNeedsPersonalization(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "plain_question", content: "What are the symptoms of flu?", want: false},
		{name: "my_records", content: "Can you show my records?", want: true},
		{name: "case_insensitive", content: "SHOW MY PRESCRIPTION please", want: true},
		{name: "keyword_inside_sentence", content: "I would like to book appointment for tomorrow", want: true},
		{name: "schedule_verb", content: "How do I schedule a visit?", want: true},
		{name: "empty", content: "", want: false},
		{name: "general_advice", content: "Tips for a healthy lifestyle", want: false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsPersonalization(tt.content); got != tt.want {
				t.Fatalf("NeedsPersonalization(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
