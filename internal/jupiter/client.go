package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/solfleet/solfleet/internal/swap"
)

// Config tunes the API client. Zero values fall back to defaults.
type Config struct {
	BaseURL        string
	QuoteTimeout   time.Duration // per quote call, default 15s
	ExecuteTimeout time.Duration // per execute call, default 90s
	MaxTries       int           // HTTP attempts per call, default 3; set from the run's retry budget
	PlatformFeeBps int
}

const (
	defaultQuoteTimeout   = 15 * time.Second
	defaultExecuteTimeout = 90 * time.Second
	defaultMaxTries       = 3
)

// Client talks to the swap aggregator over HTTP. Safe for concurrent use.
// Transient transport failures and throttling are retried per call with
// exponential backoff; business rejections surface immediately.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a client over the given base URL.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = defaultQuoteTimeout
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = defaultExecuteTimeout
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = defaultMaxTries
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger.Named("jupiter"),
	}
}

// SupportedTokens returns the symbol-to-mint table the aggregator trades.
func (c *Client) SupportedTokens(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QuoteTimeout)
	defer cancel()

	body, err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/tokens", nil)
	if err != nil {
		return nil, err
	}
	var resp tokensResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, swap.WrapError(swap.KindTransport, err, "decoding token list")
	}
	return resp.Tokens, nil
}

// Quote fetches a swap quote. The raw response is preserved on the returned
// quote so Execute can send back exactly what was quoted.
func (c *Client) Quote(ctx context.Context, params swap.QuoteParams) (*swap.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QuoteTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("inputMint", params.InputMint)
	q.Set("outputMint", params.OutputMint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	q.Set("onlyDirectRoutes", strconv.FormatBool(params.DirectOnly))
	q.Set("asLegacyTransaction", "false")
	if c.cfg.PlatformFeeBps > 0 {
		q.Set("platformFeeBps", strconv.Itoa(c.cfg.PlatformFeeBps))
	}

	body, err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, swap.WrapError(swap.KindQuote, err, "decoding quote")
	}
	in, err := resp.inAmount()
	if err != nil {
		return nil, swap.WrapError(swap.KindQuote, err, "malformed quote")
	}
	out, err := resp.outAmount()
	if err != nil {
		return nil, swap.WrapError(swap.KindQuote, err, "malformed quote")
	}
	impact, err := resp.priceImpactBps()
	if err != nil {
		return nil, swap.WrapError(swap.KindQuote, err, "malformed quote")
	}

	c.logger.Debug("quote received",
		zap.Uint64("in", in),
		zap.Uint64("out", out),
		zap.Int("price_impact_bps", impact),
		zap.String("route", resp.RouteID))

	return &swap.Quote{
		InAmount:       in,
		OutAmount:      out,
		RouteID:        resp.RouteID,
		PriceImpactBps: impact,
		FetchedAt:      time.Now(),
		Raw:            body,
	}, nil
}

// Execute settles a quoted swap. The private key travels only in this
// request body and is never logged.
func (c *Client) Execute(ctx context.Context, privateKey string, quote *swap.Quote, opts swap.ExecOptions) (*swap.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExecuteTimeout)
	defer cancel()

	payload, err := json.Marshal(swapRequest{
		UserWalletPrivateKeyBase58: privateKey,
		QuoteResponse:              quote.Raw,
		WrapAndUnwrapSol:           opts.WrapUnwrapSOL,
		CollectFees:                opts.CollectFee,
		VerifySwap:                 opts.Verify,
	})
	if err != nil {
		return nil, swap.WrapError(swap.KindUnknown, err, "encoding swap request")
	}

	body, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/swap", payload)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, swap.WrapError(swap.KindTransport, err, "decoding swap response")
	}
	if resp.Status == "failed" || resp.Status == "failure" {
		return nil, classifyBusiness(resp.ErrorCode, resp.Error)
	}

	var output uint64
	if resp.OutputAmount != "" {
		if output, err = parseAmount(resp.OutputAmount, "outputAmount"); err != nil {
			return nil, swap.WrapError(swap.KindUnknown, err, "malformed swap response")
		}
	}

	res := &swap.ExecResult{
		TxID:         resp.TransactionID,
		OutputAmount: output,
		Verified:     resp.Status == "success",
		NewBalance:   resp.NewBalance,
	}
	if fc := resp.FeeCollection; fc != nil && fc.Status == "success" {
		res.FeeAmount = fc.FeeAmount
	} else if fc != nil && fc.Error != "" {
		c.logger.Warn("fee collection failed", zap.String("error", fc.Error))
	}
	return res, nil
}

// doJSON performs one request with short transport-level retries. Only
// connection failures, 5xx and 429 are retried here; everything else is a
// permanent per-call outcome the runner decides about.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, backoff.Permanent(swap.WrapError(swap.KindUnknown, err, "building request"))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(swap.WrapError(swap.KindTransport, err, "request aborted"))
			}
			return nil, swap.WrapError(swap.KindTransport, err, "request failed")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, swap.WrapError(swap.KindTransport, err, "reading response")
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, swap.NewError(swap.KindRateLimited, "throttled by aggregator")
		case resp.StatusCode >= 500:
			return nil, swap.NewError(swap.KindTransport, "server error %d", resp.StatusCode)
		default:
			return nil, backoff.Permanent(classifyHTTP(resp.StatusCode, body))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.MaxTries)),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("transport retry", zap.Error(err), zap.Duration("backoff", d))
		}),
	)
}

// classifyHTTP maps a non-retryable status code to a typed error.
func classifyHTTP(status int, body []byte) error {
	var envelope apiError
	_ = json.Unmarshal(body, &envelope)
	detail := envelope.Error
	if detail == "" {
		detail = fmt.Sprintf("unexpected status %d", status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return swap.NewError(swap.KindAuth, "%s", detail)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		if envelope.ErrorCode != "" {
			return classifyBusiness(envelope.ErrorCode, detail)
		}
		return swap.NewError(swap.KindQuote, "%s", detail)
	default:
		return swap.NewError(swap.KindUnknown, "%s", detail)
	}
}

// classifyBusiness maps the aggregator's error codes onto the runner's
// retry taxonomy.
func classifyBusiness(code, detail string) error {
	if detail == "" {
		detail = code
	}
	switch code {
	case "SLIPPAGE_EXCEEDED", "SLIPPAGE_TOLERANCE_EXCEEDED":
		return swap.NewError(swap.KindSlippage, "%s", detail)
	case "QUOTE_EXPIRED", "STALE_QUOTE":
		return swap.NewError(swap.KindQuoteStale, "%s", detail)
	case "INSUFFICIENT_BALANCE", "INSUFFICIENT_FUNDS":
		return swap.NewError(swap.KindInsufficientBalance, "%s", detail)
	case "INVALID_KEY", "UNAUTHORIZED":
		return swap.NewError(swap.KindAuth, "%s", detail)
	case "NO_ROUTE", "INVALID_MINT", "AMOUNT_TOO_SMALL":
		return swap.NewError(swap.KindQuote, "%s", detail)
	case "VERIFICATION_FAILED":
		return swap.NewError(swap.KindVerification, "%s", detail)
	default:
		return swap.NewError(swap.KindUnknown, "%s", detail)
	}
}
