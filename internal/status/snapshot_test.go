package status

import "testing"

func TestNormalizePercent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{name: "nil", in: nil, want: nil},
		{name: "int in range", in: 30, want: intp(30)},
		{name: "int zero", in: 0, want: intp(0)},
		{name: "int hundred", in: 100, want: intp(100)},
		{name: "int negative", in: -1, want: nil},
		{name: "int over", in: 101, want: nil},
		{name: "int64", in: int64(45), want: intp(45)},
		{name: "integral float", in: 60.0, want: intp(60)},
		{name: "fractional float", in: 60.5, want: nil},
		{name: "decimal string", in: "70", want: intp(70)},
		{name: "padded string", in: "  80 ", want: intp(80)},
		{name: "junk string", in: "almost done", want: nil},
		{name: "bool", in: true, want: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePercent(tt.in)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("NormalizePercent(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Fatalf("NormalizePercent(%v) = %d, want %d", tt.in, *got, *tt.want)
			}
		})
	}
}

func intp(n int) *int { return &n }

func TestExtractID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare number", in: "2000123456789", want: "2000123456789"},
		{name: "exactly ten digits", in: "2000123456", want: "2000123456"},
		{name: "nine digits", in: "200012345", want: ""},
		{name: "digits with separators", in: "2000-1234 5678/90", want: "20001234567890"},
		{name: "digits in prose", in: "please check 2000123456 for me", want: "2000123456"},
		{name: "no digits", in: "hello there", want: ""},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractID(tt.in); got != tt.want {
				t.Fatalf("ExtractID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
