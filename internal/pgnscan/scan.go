package pgnscan

import (
	"io"
	"strings"
)

// Headers is one game's tag block, tag name to value.
type Headers map[string]string

// ReadHeaders consumes one game's tag block from the cursor: tag
// lines up to a blank line or end of stream. Blank lines before the
// block are tolerated. Returns io.EOF only when the stream ends
// before any line of a new game, which signals archive-drained.
//
// Malformed tag lines are skipped rather than failing the game; the
// game is still counted and filtered on whatever tags did parse.
func ReadHeaders(lr *LineReader) (Headers, error) {
	h := Headers{}
	seen := false
	for {
		line, err := lr.ReadLine()
		if err == io.EOF {
			if !seen {
				return nil, io.EOF
			}
			return h, nil
		}
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !seen {
				continue
			}
			return h, nil
		}
		seen = true
		if trimmed[0] != '[' {
			continue
		}
		if key, value, ok := parseTagLine(trimmed); ok {
			h[key] = value
		}
	}
}

// SkipMovetext advances the cursor past one game's movetext block
// without interpreting it: lines through the next blank line or end
// of stream. Post-condition matches the deep-parse path.
func SkipMovetext(lr *LineReader) error {
	for {
		line, err := lr.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			return nil
		}
	}
}

// parseTagLine tokenizes a `[Key "Value"]` tag line. Spacing between
// the brackets is flexible and the value may contain \" and \\
// escapes. Anything that doesn't fit the shape reports ok=false.
func parseTagLine(line string) (key, value string, ok bool) {
	if len(line) < 2 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", "", false
	}
	inner := strings.TrimSpace(line[1 : len(line)-1])
	i := strings.IndexAny(inner, " \t")
	if i <= 0 {
		return "", "", false
	}
	key = inner[:i]
	rest := strings.TrimSpace(inner[i+1:])
	if len(rest) < 2 || rest[0] != '"' {
		return "", "", false
	}
	var b strings.Builder
	escaped := false
	for j := 1; j < len(rest); j++ {
		c := rest[j]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			return key, b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	// Unterminated quote.
	return "", "", false
}
