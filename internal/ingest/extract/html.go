package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// paragraph-level elements end with a blank line, other blocks with a newline
var (
	paragraphTags = map[atom.Atom]bool{
		atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
		atom.H5: true, atom.H6: true, atom.Blockquote: true, atom.Pre: true,
		atom.Section: true, atom.Article: true, atom.Table: true,
	}
	lineTags = map[atom.Atom]bool{
		atom.Div: true, atom.Li: true, atom.Tr: true, atom.Br: true, atom.Ul: true,
		atom.Ol: true, atom.Dt: true, atom.Dd: true, atom.Hr: true, atom.Title: true,
	}
)

// HTML extracts the visible text of an HTML document
func HTML(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return htmlText(io.LimitReader(f, maxTextBytes))
}

func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return normalizeWhitespace(sb.String()), nil
			}
			return "", fmt.Errorf("failed to parse html: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			if tag == atom.Script || tag == atom.Style {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if tag == atom.Br || tag == atom.Hr {
				sb.WriteString("\n")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Script || tag == atom.Style:
				if skip > 0 {
					skip--
				}
			case paragraphTags[tag]:
				sb.WriteString("\n\n")
			case lineTags[tag]:
				sb.WriteString("\n")
			}

		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

// normalizeWhitespace collapses runs of spaces inside lines and keeps at most
// one blank line between paragraphs
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
