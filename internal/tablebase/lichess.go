package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/smpchess/internal/board"
)

// DefaultLichessURL is the public Lichess tablebase endpoint.
const DefaultLichessURL = "https://tablebase.lichess.ovh/standard"

// LichessProber uses the Lichess tablebase API for online lookups.
// It requires network access and is subject to rate limits.
type LichessProber struct {
	client    *http.Client
	baseURL   string
	maxPieces int
}

// NewLichessProber creates a prober for the API at baseURL, or the public
// endpoint when baseURL is empty.
func NewLichessProber(baseURL string) *LichessProber {
	if baseURL == "" {
		baseURL = DefaultLichessURL
	}
	return &LichessProber{
		client:    &http.Client{Timeout: 5 * time.Second},
		baseURL:   baseURL,
		maxPieces: 7, // Lichess supports up to 7-piece tablebases
	}
}

type lichessResponse struct {
	Category string `json:"category"`
	DTZ      int    `json:"dtz"`
	Moves    []struct {
		UCI      string `json:"uci"`
		Category string `json:"category"`
		DTZ      int    `json:"dtz"`
	} `json:"moves"`
}

func (lp *LichessProber) ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error) {
	if CountPieces(pos) > lp.maxPieces {
		return RootResult{}, nil
	}

	u := lp.baseURL + "?fen=" + url.QueryEscape(pos.FEN())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return RootResult{}, err
	}
	resp, err := lp.client.Do(req)
	if err != nil {
		return RootResult{}, fmt.Errorf("tablebase request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RootResult{}, fmt.Errorf("tablebase request: %s", resp.Status)
	}

	var result lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return RootResult{}, fmt.Errorf("tablebase response: %w", err)
	}
	if len(result.Moves) == 0 {
		return RootResult{}, nil
	}

	// Moves are listed best first from the side to move's point of view;
	// their categories are from the opponent's.
	best := result.Moves[0]
	m, err := pos.ParseMove(best.UCI)
	if err != nil {
		log.Warn().Err(err).Str("uci", best.UCI).Msg("tablebase returned an unknown move")
		return RootResult{}, nil
	}
	return RootResult{
		Found: true,
		Move:  m,
		WDL:   categoryToWDL(result.Category),
		DTZ:   result.DTZ,
	}, nil
}

func (lp *LichessProber) MaxPieces() int {
	return lp.maxPieces
}

func categoryToWDL(category string) WDL {
	switch category {
	case "win":
		return WDLWin
	case "cursed-win", "maybe-win":
		return WDLCursedWin
	case "blessed-loss", "maybe-loss":
		return WDLBlessedLoss
	case "loss":
		return WDLLoss
	default:
		return WDLDraw
	}
}
