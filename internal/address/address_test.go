package address

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Checksummed", "0xFfD090EB6169F29890C08D5FB8F9bF1040E3BC21", "0xffd090eb6169f29890c08d5fb8f9bf1040e3bc21"},
		{"Missing Prefix", "ffd090eb6169f29890c08d5fb8f9bf1040e3bc21", "0xffd090eb6169f29890c08d5fb8f9bf1040e3bc21"},
		{"Whitespace", "  0xF6D861CFE2C17FA2362742605BE9BB1DAD279035 ", "0xf6d861cfe2c17fa2362742605be9bb1dad279035"},
		{"Non Hex", "Alice", "alice"},
		{"Empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPatternScore(t *testing.T) {
	tests := []struct {
		addr string
		want float64
	}{
		{"0xffd090eb6169f29890c08d5fb8f9bf1040e3bc21", 200},
		{"0xf6d861cfe2c17fa2362742605be9bb1dad279035", 100},
		{"0xf234ffff", 100}, // only the first six characters count
		{"fff", 300},
		{"", 0},
	}

	for _, tt := range tests {
		if got := PatternScore(tt.addr); got != tt.want {
			t.Errorf("PatternScore(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
