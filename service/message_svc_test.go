package service

import (
	"testing"

	"github.com/mesahub/mesa/types"
)

func Test_annotateJumboable(t *testing.T) {
	tt := []struct {
		name string
		in   string
		want bool
	}{
		{
			name: "single_emoji",
			in:   "🎉",
			want: true,
		},
		{
			name: "multiple_emoji",
			in:   "🎉 🚀 😄",
			want: true,
		},
		{
			name: "picker_variant_emoji",
			in:   "👍️",
			want: true,
		},
		{
			name: "plain_text",
			in:   "hello",
			want: false,
		},
		{
			name: "emoji_mixed_with_text",
			in:   "party 🎉",
			want: false,
		},
		{
			name: "empty_content",
			in:   "",
			want: false,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			in := types.SendMessage{Content: tc.in}
			annotateJumboable(&in)

			got := in.Metadata["jumboable"] == true
			if got != tc.want {
				t.Errorf("want jumboable %v for %q, got %v", tc.want, tc.in, got)
			}
		})
	}
}
