// Package jupiter implements the swap aggregator API client used for
// quoting and executing token swaps.
package jupiter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// quoteResponse is the aggregator's quote payload. Amounts arrive as decimal
// strings; priceImpactPct is a decimal percentage ("0.5" is half a percent).
type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	RouteID        string          `json:"routeId"`
	RoutePlan      json.RawMessage `json:"routePlan"`
}

func (q *quoteResponse) inAmount() (uint64, error) {
	return parseAmount(q.InAmount, "inAmount")
}

func (q *quoteResponse) outAmount() (uint64, error) {
	return parseAmount(q.OutAmount, "outAmount")
}

// priceImpactBps converts the percentage to basis points, rounding half away
// from zero. "0.5" -> 50.
func (q *quoteResponse) priceImpactBps() (int, error) {
	if q.PriceImpactPct == "" {
		return 0, nil
	}
	pct, err := strconv.ParseFloat(q.PriceImpactPct, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing priceImpactPct %q: %w", q.PriceImpactPct, err)
	}
	return int(math.Round(pct * 100)), nil
}

func parseAmount(s, field string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return v, nil
}

// swapRequest is the execute payload. The quote rides along verbatim so the
// server settles exactly what was quoted.
type swapRequest struct {
	UserWalletPrivateKeyBase58 string          `json:"userWalletPrivateKeyBase58"`
	QuoteResponse              json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol           bool            `json:"wrapAndUnwrapSol"`
	CollectFees                bool            `json:"collectFees"`
	VerifySwap                 bool            `json:"verifySwap"`
}

// swapResponse reports a settled (or rejected) execution.
//
// Status is one of "success", "unverified" or "failed"; on "failed" the
// ErrorCode and Error fields say why.
type swapResponse struct {
	TransactionID string         `json:"transactionId"`
	Status        string         `json:"status"`
	OutputAmount  string         `json:"outputAmount"`
	NewBalance    uint64         `json:"newBalance"`
	FeeCollection *feeCollection `json:"feeCollection,omitempty"`
	ErrorCode     string         `json:"errorCode,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// feeCollection describes the platform-fee leg of a swap. Collection is best
// effort; a failed leg never fails the swap itself.
type feeCollection struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	FeeAmount     uint64 `json:"feeAmount,omitempty"`
	FeeTokenMint  string `json:"feeTokenMint,omitempty"`
	Error         string `json:"error,omitempty"`
}

// apiError is the error envelope returned on non-2xx responses.
type apiError struct {
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
}

// tokensResponse lists the symbols the aggregator can trade.
type tokensResponse struct {
	Tokens map[string]string `json:"tokens"` // symbol -> mint
}
