// Package filter decides which games are worth deep-parsing.
package filter

import (
	"strconv"

	"github.com/freeeve/fendb/internal/pgnscan"
)

// RatedClassical is the exact Event tag value of a rated classical
// Lichess game. No normalization or partial matching is applied.
const RatedClassical = "Rated Classical game"

// Pass reports whether a game should be kept: both players rated at
// or above minElo and the event is a rated classical game. Missing
// or non-numeric ratings reject the game; Lichess writes "?" for
// unrated players.
func Pass(h pgnscan.Headers, minElo int) bool {
	if h["Event"] != RatedClassical {
		return false
	}
	white, ok := parseElo(h["WhiteElo"])
	if !ok || white < minElo {
		return false
	}
	black, ok := parseElo(h["BlackElo"])
	if !ok || black < minElo {
		return false
	}
	return true
}

func parseElo(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
