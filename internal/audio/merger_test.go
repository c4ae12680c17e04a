package audio

import "testing"

func TestMergeTranscripts(t *testing.T) {
	tests := []struct {
		name            string
		transcripts     []string
		overlapFraction float64
		expected        string
	}{
		{
			name:            "empty input",
			transcripts:     nil,
			overlapFraction: 0.04,
			expected:        "",
		},
		{
			name:            "single transcript",
			transcripts:     []string{"hello world"},
			overlapFraction: 0.04,
			expected:        "hello world",
		},
		{
			name:            "simple word overlap",
			transcripts:     []string{"the quick brown", "brown fox jumps"},
			overlapFraction: 0.04,
			expected:        "the quick brown fox jumps",
		},
		{
			name:            "multi word overlap",
			transcripts:     []string{"we went to the store", "to the store and bought milk"},
			overlapFraction: 0.5,
			expected:        "we went to the store and bought milk",
		},
		{
			name:            "no overlap joins with space",
			transcripts:     []string{"first part", "second part"},
			overlapFraction: 0.04,
			expected:        "first part second part",
		},
		{
			name:            "case insensitive overlap",
			transcripts:     []string{"meet me at Noon", "noon by the gate"},
			overlapFraction: 0.3,
			expected:        "meet me at Noon by the gate",
		},
		{
			name:            "punctuation tolerant overlap",
			transcripts:     []string{"see you tomorrow.", "Tomorrow we leave early"},
			overlapFraction: 0.3,
			expected:        "see you tomorrow. we leave early",
		},
		{
			name:            "empty chunk skipped",
			transcripts:     []string{"start of speech", "", "more speech"},
			overlapFraction: 0.04,
			expected:        "start of speech more speech",
		},
		{
			name:            "three chunks chained",
			transcripts:     []string{"one two three", "three four five", "five six seven"},
			overlapFraction: 0.3,
			expected:        "one two three four five six seven",
		},
		{
			name:            "identical chunks collapse",
			transcripts:     []string{"hello there", "hello there"},
			overlapFraction: 0.04,
			expected:        "hello there",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeTranscripts(tt.transcripts, tt.overlapFraction)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestOverlapRunWindow(t *testing.T) {
	prev := []string{"a", "b", "c", "d", "e"}
	next := []string{"c", "d", "e", "f", "g"}

	// A 0.6 window over 5 words searches up to 3 words and finds the run.
	if run := overlapRun(prev, next, 0.6); run != 3 {
		t.Errorf("Expected overlap run 3, got %d", run)
	}

	// Even a tiny fraction keeps the minimum search window.
	if run := overlapRun(prev, next, 0.01); run != 3 {
		t.Errorf("Expected minimum window to find run 3, got %d", run)
	}

	// No shared run at all.
	if run := overlapRun([]string{"x", "y"}, []string{"p", "q"}, 0.5); run != 0 {
		t.Errorf("Expected no overlap, got %d", run)
	}
}

func TestNormalizeWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "hello"},
		{"world.", "world"},
		{"(yes)", "yes"},
		{"it's", "it's"}, // interior punctuation is kept
		{"...", ""},
	}

	for _, tt := range tests {
		if got := normalizeWord(tt.in); got != tt.want {
			t.Errorf("normalizeWord(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
