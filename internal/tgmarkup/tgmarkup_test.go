// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package tgmarkup

import (
	"testing"

	"go.astrophena.name/macrotrackr/internal/testutil"
)

func TestFromMarkdown(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want Message
	}{
		"plain": {
			in:   "just text",
			want: Message{Text: "just text\n"},
		},
		"bold": {
			in: "Hello **world**",
			want: Message{
				Text: "Hello world\n",
				Entities: []Entity{
					{Type: Bold, Offset: 6, Length: 5},
				},
			},
		},
		// Offsets are in UTF-16 code units, so the emoji counts as two.
		"bold after emoji": {
			in: "📊 **Bold**",
			want: Message{
				Text: "📊 Bold\n",
				Entities: []Entity{
					{Type: Bold, Offset: 3, Length: 4},
				},
			},
		},
		"code and italic": {
			in: "Use `go build` to *compile*",
			want: Message{
				Text: "Use go build to compile\n",
				Entities: []Entity{
					{Type: Code, Offset: 4, Length: 8},
					{Type: Italic, Offset: 16, Length: 7},
				},
			},
		},
		"link": {
			in: "see [docs](https://example.com)",
			want: Message{
				Text: "see docs\n",
				Entities: []Entity{
					{Type: TextLink, Offset: 4, Length: 4, URL: "https://example.com"},
				},
			},
		},
		"autolink": {
			in: "<https://go.dev>",
			want: Message{
				Text: "https://go.dev\n",
				Entities: []Entity{
					{Type: URL, Offset: 0, Length: 14},
				},
			},
		},
		"heading becomes bold": {
			in: "# Title\n\ntext",
			want: Message{
				Text: "Title\ntext\n",
				Entities: []Entity{
					{Type: Bold, Offset: 0, Length: 5},
				},
			},
		},
		"list": {
			in:   "- one\n- two",
			want: Message{Text: "• one\n• two\n"},
		},
		"code block": {
			in: "```go\nfmt.Println(1)\n```",
			want: Message{
				Text: "fmt.Println(1)\n",
				Entities: []Entity{
					{Type: Pre, Offset: 0, Length: 14, Language: "go"},
				},
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, FromMarkdown(tc.in), tc.want)
		})
	}
}

func TestFromMarkdownMultilineBold(t *testing.T) {
	t.Parallel()

	// The shape of a typical progress message: a bold header followed by
	// plain lines in the same paragraph.
	got := FromMarkdown("**Daily Calorie Progress**\n365 / 1350 kcal")
	testutil.AssertEqual(t, got, Message{
		Text: "Daily Calorie Progress\n365 / 1350 kcal\n",
		Entities: []Entity{
			{Type: Bold, Offset: 0, Length: 22},
		},
	})
}
