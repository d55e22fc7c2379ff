package sse

import "strings"

const (
	// Delimiter terminates an event block on the wire.
	Delimiter = "\n\n"

	// DataPrefix starts every payload line of an event block.
	DataPrefix = "data: "

	commentPrefix = ": "
)

// EncodeData frames text as exactly one event block. Every line of text,
// including empty lines produced by adjacent newlines, gets the DataPrefix
// so the block never contains a premature Delimiter.
func EncodeData(text string) string {
	return encodeLines(text, DataPrefix)
}

// EncodeComment frames text as a comment block. Decoders drop it because
// it carries no data lines.
func EncodeComment(text string) string {
	return encodeLines(text, commentPrefix)
}

func encodeLines(text, prefix string) string {
	lines := strings.Split(text, "\n")

	var b strings.Builder
	b.Grow(len(text) + len(lines)*len(prefix) + len(Delimiter))
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	b.WriteString(Delimiter)

	return b.String()
}

// DataFromBlock reconstructs the text carried by a single event block
// (without its trailing Delimiter). Only lines starting with DataPrefix
// contribute; the prefix is stripped and the lines are rejoined with "\n".
// The boolean is false when the block holds no data lines at all.
func DataFromBlock(block string) (string, bool) {
	var (
		b     strings.Builder
		found bool
	)

	for line := range strings.SplitSeq(block, "\n") {
		data, ok := strings.CutPrefix(line, DataPrefix)
		if !ok {
			continue
		}
		if found {
			b.WriteByte('\n')
		}
		b.WriteString(data)
		found = true
	}

	return b.String(), found
}
