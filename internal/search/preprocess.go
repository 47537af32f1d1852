package search

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single line of a knowledge file.
const maxLineBytes = 4 << 20

// PrepareMarkdownFile reads the file at path and flattens it with
// FlattenMarkdown.
func PrepareMarkdownFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FlattenMarkdown(bytes.NewReader(b))
}

// FlattenMarkdown rewrites Markdown into plain paragraphs separated by blank
// lines:
//
//   - each table row becomes its own paragraph with cells joined by spaces;
//     separator rows are dropped
//   - each heading becomes its own paragraph without the leading '#'
//   - other lines keep their paragraph grouping
//
// The output ends with exactly one newline, or is empty.
func FlattenMarkdown(r io.Reader) ([]byte, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		out  []string
		para []string
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, "\n"))
			para = para[:0]
		}
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case isTableRow(line):
			flush()
			if fact := tableFact(line); fact != "" {
				out = append(out, fact)
			}
		case strings.HasPrefix(line, "#"):
			flush()
			if h := strings.TrimSpace(strings.TrimLeft(line, "#")); h != "" {
				out = append(out, h)
			}
		default:
			para = append(para, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(out) == 0 {
		return nil, nil
	}
	return []byte(strings.Join(out, "\n\n") + "\n"), nil
}

func isTableRow(line string) bool {
	return len(line) > 1 && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}

// tableFact joins the non-empty cells of a row. Separator rows such as
// "| --- | :-: |" yield "".
func tableFact(line string) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	kept := make([]string, 0, len(cells))
	separator := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.Trim(c, ":-") != "" {
			separator = false
		}
		kept = append(kept, c)
	}
	if separator {
		return ""
	}
	return strings.Join(kept, " ")
}
