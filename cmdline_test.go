package svcinstall

import (
	"reflect"
	"testing"
)

func TestJoinSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"simple", []string{"/bin/x", "--flag", "value"}},
		{"spaces", []string{"/bin/x", "--flag", "value with spaces"}},
		{"embedded_quote", []string{"/bin/x", `say "hi"`}},
		{"backslash", []string{`C:\Program Files\app.exe`, "--dir", `C:\data`}},
		{"empty_argument", []string{"/bin/x", "", "y"}},
		{"single_executable", []string{"/usr/local/bin/agentbus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := joinCommandLine(tt.args)
			got := splitCommandLine(line)
			if !reflect.DeepEqual(got, tt.args) {
				t.Errorf("round trip of %v through %q = %v", tt.args, line, got)
			}
		})
	}
}

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"has space", `"has space"`},
		{`has"quote`, `"has\"quote"`},
		{"--port", "--port"},
	}

	for _, tt := range tests {
		if got := quoteArg(tt.in); got != tt.want {
			t.Errorf("quoteArg(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "unquoted",
			line: "/usr/local/bin/agentbus --port 8000",
			want: []string{"/usr/local/bin/agentbus", "--port", "8000"},
		},
		{
			name: "double_quoted",
			line: `/bin/x "value with spaces" y`,
			want: []string{"/bin/x", "value with spaces", "y"},
		},
		{
			name: "single_quoted",
			line: `/bin/x 'single quoted arg'`,
			want: []string{"/bin/x", "single quoted arg"},
		},
		{
			name: "escaped_space",
			line: `/bin/a\ b c`,
			want: []string{"/bin/a b", "c"},
		},
		{
			name: "tabs_as_delimiters",
			line: "a\tb\t c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty",
			line: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitCommandLine(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitCommandLine(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}
