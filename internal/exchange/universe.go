package exchange

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const exchangeInfoPath = "/api/v3/exchangeInfo"

// statusTrading is the source's marker for an actively trading instrument.
const statusTrading = "TRADING"

type exchangeInfoResponse struct {
	Symbols []instrumentInfo `json:"symbols"`
}

type instrumentInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// Universe enumerates the tradable spot instruments for one quote asset.
type Universe struct {
	log    zerolog.Logger
	client *Client
	quote  string
}

// NewUniverse builds a loader filtering to the given quote asset (e.g. USDT).
func NewUniverse(log zerolog.Logger, client *Client, quoteAsset string) *Universe {
	return &Universe{log: log, client: client, quote: strings.ToUpper(quoteAsset)}
}

// List returns the symbols that are actively trading, quoted in the configured
// asset, and spot-eligible, excluding leveraged long/short token products.
// Sorted lexicographically so repeated scans walk the universe in the same order.
func (u *Universe) List(ctx context.Context) ([]string, error) {
	var payload exchangeInfoResponse
	if err := u.client.Get(ctx, exchangeInfoPath, nil, &payload); err != nil {
		return nil, err
	}
	markers := leveragedMarkers(u.quote)
	symbols := make([]string, 0, len(payload.Symbols))
	for _, info := range payload.Symbols {
		if info.Status != statusTrading || info.QuoteAsset != u.quote || !info.IsSpotTradingAllowed {
			continue
		}
		if isLeveragedToken(info.Symbol, markers) {
			continue
		}
		symbols = append(symbols, info.Symbol)
	}
	sort.Strings(symbols)
	u.log.Info().Int("symbols", len(symbols)).Str("quote", u.quote).Msg("loaded instrument universe")
	return symbols, nil
}

// leveragedMarkers names the suffix patterns of leveraged long/short token
// products (UP/DOWN/BULL/BEAR + quote). These are not genuine spot instruments.
func leveragedMarkers(quote string) []string {
	return []string{"UP" + quote, "DOWN" + quote, "BULL" + quote, "BEAR" + quote}
}

func isLeveragedToken(symbol string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(symbol, marker) {
			return true
		}
	}
	return false
}
