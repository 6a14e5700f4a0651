package textutil

import "testing"

func Test_SmartTrim(t *testing.T) {
	tt := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses_spaces",
			in:   "hello    world",
			want: "hello world",
		},
		{
			name: "collapses_linebreaks",
			in:   "hello\n\n\n\nworld",
			want: "hello\n\nworld",
		},
		{
			name: "trims_edges",
			in:   "  hello world \n",
			want: "hello world",
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := SmartTrim(tc.in); got != tc.want {
				t.Errorf("SmartTrim(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func Test_Truncate(t *testing.T) {
	tt := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{
			name: "short_enough",
			in:   "hello",
			max:  10,
			want: "hello",
		},
		{
			name: "exact_length",
			in:   "hello",
			max:  5,
			want: "hello",
		},
		{
			name: "cut_with_ellipsis",
			in:   "hello world",
			max:  6,
			want: "hello…",
		},
		{
			name: "multibyte_runes",
			in:   "héllö wörld",
			max:  6,
			want: "héllö…",
		},
		{
			name: "zero_max",
			in:   "hello",
			max:  0,
			want: "",
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truncate(tc.in, tc.max); got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q; want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
