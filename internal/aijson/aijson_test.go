package aijson

import "testing"

type item struct {
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
}

func TestUnmarshalArray(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{"plain array", `[{"title":"Two Sum","difficulty":"easy"}]`, 1, false},
		{"fenced array", "```json\n[{\"title\":\"Two Sum\",\"difficulty\":\"easy\"}]\n```", 1, false},
		{"array in prose", `Here are your questions: [{"title":"A","difficulty":"easy"},{"title":"B","difficulty":"hard"}] good luck!`, 2, false},
		{"no json at all", "sorry, I cannot help with that", 0, true},
		{"empty string", "", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var items []item
			err := UnmarshalArray(tc.raw, &items)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(items) != tc.wantLen {
				t.Errorf("Expected %d items, got %d", tc.wantLen, len(items))
			}
		})
	}
}

func TestUnmarshalObject(t *testing.T) {
	var out struct {
		Improvement string `json:"improvement"`
	}

	raw := "Of course! ```json\n{\"improvement\": \"practice recursion\"}\n```"
	if err := UnmarshalObject(raw, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Improvement != "practice recursion" {
		t.Errorf("Expected improvement text, got %q", out.Improvement)
	}

	if err := UnmarshalObject("nothing here", &out); err == nil {
		t.Error("Expected error for non-JSON input")
	}
}

func TestUnmarshalArrayRepaired(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{
			"bare keys and single quotes",
			`[{title: 'Two Sum', difficulty: 'easy'}, {title: 'LRU Cache', difficulty: 'hard'}]`,
			2, false,
		},
		{
			"trailing commas",
			`[{"title":"A","difficulty":"easy",},{"title":"B","difficulty":"med",},]`,
			2, false,
		},
		{
			"truncated output",
			`[{"title":"A","difficulty":"easy"},{"title":"B","difficulty":"hard"`,
			2, false,
		},
		{
			"object fragments in prose",
			`First question: {"title":"A","difficulty":"easy"} and also {"title":"B","difficulty":"hard"} done`,
			2, false,
		},
		{
			"hopeless garbage",
			"the model refused to answer",
			0, true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var items []item
			err := UnmarshalArrayRepaired(tc.raw, &items)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(items) != tc.wantLen {
				t.Errorf("Expected %d items, got %d: %+v", tc.wantLen, len(items), items)
			}
		})
	}
}

func TestBalanceBrackets_IgnoresQuotedBrackets(t *testing.T) {
	s := balanceBrackets(`[{"title":"arr[0] and {x}"}`)
	var items []item
	if err := UnmarshalArray(s, &items); err != nil {
		t.Fatalf("Balanced string should parse: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"```json\n[]\n```", "[]"},
		{"```\n{}\n```", "{}"},
		{"  [1,2]  ", "[1,2]"},
	}
	for _, tc := range tests {
		if got := StripFences(tc.raw); got != tc.expected {
			t.Errorf("StripFences(%q) = %q, want %q", tc.raw, got, tc.expected)
		}
	}
}
