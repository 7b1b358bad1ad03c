package extract

import (
	"io"
	"strings"

	"github.com/freeeve/fendb/internal/pgnscan"
)

// MoveParser consumes one game's movetext from the cursor and
// returns its mainline SAN tokens. Implementations must leave the
// cursor past the trailing blank line, the same post-condition as
// pgnscan.SkipMovetext, so the orchestrator can treat the kept and
// skipped branches uniformly.
type MoveParser interface {
	ParseMovetext(lr *pgnscan.LineReader) ([]string, error)
}

// SANParser extracts mainline SAN tokens from movetext, dropping
// comments, variations, NAGs, move numbers, and the result token.
// Comments and variations may span lines.
type SANParser struct{}

func (SANParser) ParseMovetext(lr *pgnscan.LineReader) ([]string, error) {
	var sans []string
	var st tokenState
	for {
		line, err := lr.ReadLine()
		if err == io.EOF {
			return sans, nil
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			return sans, nil
		}
		sans = tokenizeLine(line, &st, sans)
	}
}

type tokenState struct {
	inComment bool
	varDepth  int
}

// tokenizeLine appends the SAN tokens of one movetext line to sans.
func tokenizeLine(line string, st *tokenState, sans []string) []string {
	start := -1
	flush := func(end int) {
		if start >= 0 {
			if san, ok := cleanToken(line[start:end]); ok {
				sans = append(sans, san)
			}
			start = -1
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if st.inComment {
			if c == '}' {
				st.inComment = false
			}
			continue
		}
		switch c {
		case '{':
			flush(i)
			st.inComment = true
		case '(':
			flush(i)
			st.varDepth++
		case ')':
			if st.varDepth > 0 {
				st.varDepth--
			}
		case ' ', '\t':
			flush(i)
		default:
			if st.varDepth == 0 && start < 0 {
				start = i
			}
			if st.varDepth > 0 {
				start = -1
			}
		}
	}
	flush(len(line))
	return sans
}

// cleanToken strips move numbers and annotation glyphs from a raw
// token and reports whether a SAN move remains.
func cleanToken(tok string) (string, bool) {
	switch tok {
	case "", "*", "1-0", "0-1", "1/2-1/2":
		return "", false
	}
	if tok[0] == '$' {
		return "", false
	}
	// Move numbers, attached or free-standing: "1.", "12...", "3.e4".
	i := 0
	for i < len(tok) && (tok[i] >= '0' && tok[i] <= '9' || tok[i] == '.') {
		i++
	}
	tok = tok[i:]
	// Check, mate, and annotation suffixes are not part of the move.
	tok = strings.TrimRight(tok, "+#!?")
	if tok == "" {
		return "", false
	}
	return tok, true
}
