// SPDX-License-Identifier: MIT

// Package subtitle parses, renders and retimes SubRip (.srt) documents.
package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

// Block is a single cue of a SubRip document.
type Block struct {
	Index     int      `json:"index"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	// Position is whatever follows the end timestamp on the timing line,
	// usually "X1:… X2:… Y1:… Y2:…" display coordinates. It is kept verbatim.
	Position  string   `json:"position,omitempty"`
	Text      []string `json:"text"`
}

// timingLine matches the fixed-width "HH:MM:SS,mmm --> HH:MM:SS,mmm" line
// and captures any trailing position text.
var timingLine = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2},\d{3}) --> (\d{2}:\d{2}:\d{2},\d{3})(.*)$`)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Parse splits doc into cue blocks. Malformed blocks are skipped; a document
// without any valid cue yields an empty slice rather than an error.
func Parse(doc string) []Block {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.TrimPrefix(doc, "\ufeff")
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return []Block{}
	}

	chunks := blankLine.Split(doc, -1)
	blocks := make([]Block, 0, len(chunks))
	for _, chunk := range chunks {
		b, ok := parseBlock(chunk)
		if !ok {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func parseBlock(chunk string) (Block, bool) {
	lines := strings.Split(strings.Trim(chunk, "\n"), "\n")
	if len(lines) < 3 {
		return Block{}, false
	}

	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || index < 1 {
		return Block{}, false
	}

	m := timingLine.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if m == nil {
		return Block{}, false
	}

	text := make([]string, len(lines)-2)
	copy(text, lines[2:])

	return Block{
		Index:     index,
		StartTime: m[1],
		EndTime:   m[2],
		Position:  strings.TrimSpace(m[3]),
		Text:      text,
	}, true
}

// Render serialises blocks back to SubRip text. Cues are separated by a single
// blank line and the document ends with a newline. No blocks renders "".
func Render(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}

	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(blk.Index))
		b.WriteString("\n")
		b.WriteString(blk.StartTime)
		b.WriteString(" --> ")
		b.WriteString(blk.EndTime)
		if blk.Position != "" {
			b.WriteString(" ")
			b.WriteString(blk.Position)
		}
		b.WriteString("\n")
		for _, line := range blk.Text {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
