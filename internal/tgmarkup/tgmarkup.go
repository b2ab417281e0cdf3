// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tgmarkup converts Markdown text to Telegram-flavored message
// markup.
//
// Telegram doesn't accept raw Markdown: a message is plain text plus a
// list of entities, each covering a range of UTF-16 code units. This
// package parses Markdown with [rsc.io/markdown] and emits the subset of
// entities bot messages use.
package tgmarkup

import (
	"strings"
	"unicode/utf16"

	"rsc.io/markdown"
)

// Message is a Telegram message text with its formatting entities, shaped
// for marshaling into Bot API requests.
// See https://core.telegram.org/bots/api#message.
type Message struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Type is the type of a message entity.
// See https://core.telegram.org/bots/api#messageentity.
type Type string

const (
	Bold     Type = "bold"
	Italic   Type = "italic"
	Code     Type = "code" // monowidth string
	Pre      Type = "pre"  // monowidth block
	URL      Type = "url"
	TextLink Type = "text_link"
)

// Entity is a formatted part of the message text. Offset and Length are
// in UTF-16 code units, as the Bot API requires.
type Entity struct {
	Type   Type `json:"type"`
	Offset int  `json:"offset"`
	Length int  `json:"length"`
	// URL is set for text_link entities only.
	URL string `json:"url,omitempty"`
	// Language is set for pre entities only.
	Language string `json:"language,omitempty"`
}

// FromMarkdown converts Markdown text to a [Message].
func FromMarkdown(text string) Message {
	var p markdown.Parser
	doc := p.Parse(text)

	var c converter
	for _, b := range doc.Blocks {
		c.block(b)
	}

	return Message{
		Text:     c.text.String(),
		Entities: c.entities,
	}
}

type converter struct {
	text     strings.Builder
	entities []Entity
}

// pos returns the current end of the text in UTF-16 code units.
func (c *converter) pos() int {
	return len(utf16.Encode([]rune(c.text.String())))
}

func (c *converter) mark(typ Type, offset int) {
	c.entities = append(c.entities, Entity{
		Type:   typ,
		Offset: offset,
		Length: c.pos() - offset,
	})
}

func (c *converter) block(b markdown.Block) {
	switch block := b.(type) {
	case *markdown.Paragraph:
		c.inlines(block.Text.Inline)
		c.text.WriteString("\n")
	case *markdown.Heading:
		offset := c.pos()
		c.inlines(block.Text.Inline)
		c.mark(Bold, offset)
		c.text.WriteString("\n")
	case *markdown.List:
		for _, itemBlock := range block.Items {
			item, ok := itemBlock.(*markdown.Item)
			if !ok {
				continue
			}
			for _, b := range item.Blocks {
				c.text.WriteString("• ")
				c.block(b)
			}
		}
	case *markdown.CodeBlock:
		offset := c.pos()
		for _, line := range block.Text {
			c.text.WriteString(line)
			c.text.WriteString("\n")
		}
		e := Entity{
			Type:     Pre,
			Offset:   offset,
			Length:   c.pos() - offset - 1,
			Language: block.Info,
		}
		c.entities = append(c.entities, e)
	case *markdown.Quote:
		for _, b := range block.Blocks {
			c.block(b)
		}
	}
}

func (c *converter) inlines(inlines markdown.Inlines) {
	for _, i := range inlines {
		c.inline(i)
	}
}

func (c *converter) inline(i markdown.Inline) {
	switch inline := i.(type) {
	case *markdown.Plain:
		c.text.WriteString(inline.Text)
	case *markdown.Strong:
		offset := c.pos()
		c.inlines(inline.Inner)
		c.mark(Bold, offset)
	case *markdown.Emph:
		offset := c.pos()
		c.inlines(inline.Inner)
		c.mark(Italic, offset)
	case *markdown.Code:
		offset := c.pos()
		c.text.WriteString(inline.Text)
		c.mark(Code, offset)
	case *markdown.Link:
		offset := c.pos()
		c.inlines(inline.Inner)
		c.entities = append(c.entities, Entity{
			Type:   TextLink,
			Offset: offset,
			Length: c.pos() - offset,
			URL:    inline.URL,
		})
	case *markdown.AutoLink:
		offset := c.pos()
		c.text.WriteString(inline.Text)
		c.mark(URL, offset)
	case *markdown.SoftBreak, *markdown.HardBreak:
		c.text.WriteString("\n")
	}
}
