package analyzer

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "simple",
			text: "Sentence one. Sentence two. Sentence three.",
			want: []string{"Sentence one.", "Sentence two.", "Sentence three."},
		},
		{
			name: "question and exclamation",
			text: "Are you okay? I am here! Let's talk.",
			want: []string{"Are you okay?", "I am here!", "Let's talk."},
		},
		{
			name: "closing quote",
			text: `She said "I can't sleep." Then she cried.`,
			want: []string{`She said "I can't sleep."`, "Then she cried."},
		},
		{
			name: "abbreviation",
			text: "Talk to Dr. Rao about it. She can help.",
			want: []string{"Talk to Dr. Rao about it.", "She can help."},
		},
		{
			name: "lowercase continuation",
			text: "Use tools, e.g. breathing exercises. They work.",
			want: []string{"Use tools, e.g. breathing exercises.", "They work."},
		},
		{
			name: "initials",
			text: "Research by J. Smith shows benefits. Sleep matters.",
			want: []string{"Research by J. Smith shows benefits.", "Sleep matters."},
		},
		{
			name: "ellipsis",
			text: "I don't know... Maybe tomorrow.",
			want: []string{"I don't know...", "Maybe tomorrow."},
		},
		{
			name: "no terminal punctuation",
			text: "no punctuation here",
			want: []string{"no punctuation here"},
		},
		{
			name: "paragraph break ends heading",
			text: "Coping with stress\n\nTake a walk. Drink water.",
			want: []string{"Coping with stress", "Take a walk.", "Drink water."},
		},
		{
			name: "whitespace collapsed",
			text: "Breathe   in.\n  Breathe\tout.",
			want: []string{"Breathe in.", "Breathe out."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
