package runaicmd

import "testing"

func TestBuilder(t *testing.T) {
	b := Builder{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"list", b.List(), "runai list"},
		{"describe plain name", b.DescribeJob("train-resnet-50"), "runai describe job train-resnet-50"},
		{"logs plain name", b.Logs("train-resnet-50"), "runai logs train-resnet-50"},
		{"describe quotes metacharacters", b.DescribeJob("x; rm -rf ~"), "runai describe job 'x; rm -rf ~'"},
		{"logs escapes single quote", b.Logs("it's"), `runai logs 'it'\''s'`},
		{"custom binary", Builder{Binary: "/opt/runai/bin/runai"}.List(), "/opt/runai/bin/runai list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("\nexpected: %s\ngot:      %s", tt.expected, tt.got)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "''"},
		{"abc", "abc"},
		{"a b", "'a b'"},
		{"$(id)", "'$(id)'"},
		{"a*", "'a*'"},
	}
	for _, tt := range tests {
		if got := Quote(tt.input); got != tt.expected {
			t.Errorf("Quote(%q) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}
