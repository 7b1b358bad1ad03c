// Package extract turns one kept game into per-ply training rows:
// the position before each move as FEN, the move in UCI, and the
// game result.
package extract

import (
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// Row is one ply of a kept game. FEN encodes the board before Move
// is played; Result is the game's Result tag, constant per game.
type Row struct {
	GameID uint64
	FEN    string
	Move   string
	Result string
}

// ParseError marks a game whose movetext could not be replayed.
// The archive containing it is abandoned and retried on a later run.
type ParseError struct {
	San string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("movetext parse %q: %v", e.San, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Replay replays sans from the starting position and emits one Row
// per ply as it goes; rows are never buffered per game. Errors from
// emit are returned unwrapped so the caller can tell a sink failure
// from a ParseError.
func Replay(gameID uint64, result string, sans []string, emit func(Row) error) error {
	pos := pgn.NewStartingPosition()
	for _, san := range sans {
		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			return &ParseError{San: san, Err: err}
		}
		row := Row{
			GameID: gameID,
			FEN:    pos.ToFEN(),
			Move:   moveToUCI(mv),
			Result: result,
		}
		if err := emit(row); err != nil {
			return err
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return &ParseError{San: san, Err: err}
		}
	}
	return nil
}

// moveToUCI converts a pgn.Mv to UCI notation (e.g., "e2e4", "e7e8q")
func moveToUCI(mv pgn.Mv) string {
	files := "abcdefgh"
	ranks := "12345678"

	from := string(files[mv.From%8]) + string(ranks[mv.From/8])
	to := string(files[mv.To%8]) + string(ranks[mv.To/8])

	uci := from + to

	switch mv.Promo {
	case pgn.PromoQueen:
		uci += "q"
	case pgn.PromoRook:
		uci += "r"
	case pgn.PromoBishop:
		uci += "b"
	case pgn.PromoKnight:
		uci += "n"
	}

	return uci
}
