package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/solfleet/solfleet/internal/swap"
)

// RunConfig is the operator-facing run file. Amounts are whole tokens;
// ToRequest converts them to base units with the token's decimals.
type RunConfig struct {
	Operation   string      `mapstructure:"operation"`
	InputToken  TokenConfig `mapstructure:"input_token"`
	OutputToken TokenConfig `mapstructure:"output_token"`

	Amount struct {
		Strategy string    `mapstructure:"strategy"`
		Value    float64   `mapstructure:"value"`   // fixed
		Percent  float64   `mapstructure:"percent"` // percentage, (0, 100]
		Min      float64   `mapstructure:"min"`     // random
		Max      float64   `mapstructure:"max"`     // random
		Amounts  []float64 `mapstructure:"amounts"` // custom
	} `mapstructure:"amount"`

	Mode struct {
		Kind          string `mapstructure:"kind"`
		DelayMS       int    `mapstructure:"delay_ms"`
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		BatchSize     int    `mapstructure:"batch_size"`
	} `mapstructure:"mode"`

	Wallets struct {
		Selection string `mapstructure:"selection"`
		Count     int    `mapstructure:"count"`
		Indices   []int  `mapstructure:"indices"`
	} `mapstructure:"wallets"`

	SlippageBps      int     `mapstructure:"slippage_bps"`
	Verify           bool    `mapstructure:"verify"`
	MaxRetries       int     `mapstructure:"max_retries"`
	RetryBackoffMS   int     `mapstructure:"retry_backoff_ms"`
	QuoteTTLSeconds  float64 `mapstructure:"quote_ttl_seconds"`
	CollectFee       bool    `mapstructure:"collect_fee"`
	MinimumInput     float64 `mapstructure:"minimum_input"`
	DeadlineSeconds  float64 `mapstructure:"deadline_seconds"`
	DirectRoutesOnly bool    `mapstructure:"direct_routes_only"`
}

// TokenConfig names a token by symbol, mint, or both.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Mint     string `mapstructure:"mint"`
	Decimals uint8  `mapstructure:"decimals"`
}

const (
	DefaultSlippageBps    = 50
	DefaultMaxRetries     = 3
	DefaultRetryBackoffMS = 500
	DefaultQuoteTTLSec    = 10.0
)

// LoadRunConfig reads one run file.
func LoadRunConfig(path string) (*RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"amount.strategy":   string(swap.StrategyFixed),
		"mode.kind":         string(swap.ModeSequential),
		"wallets.selection": string(swap.SelectAll),
		"slippage_bps":      DefaultSlippageBps,
		"verify":            true,
		"max_retries":       DefaultMaxRetries,
		"retry_backoff_ms":  DefaultRetryBackoffMS,
		"quote_ttl_seconds": DefaultQuoteTTLSec,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ToRequest converts the run file into the orchestrator's request. Range
// validation happens in the request itself; conversion only maps shapes.
func (c *RunConfig) ToRequest() *swap.Request {
	in := swap.Token{Symbol: c.InputToken.Symbol, Mint: c.InputToken.Mint, Decimals: c.InputToken.Decimals}
	out := swap.Token{Symbol: c.OutputToken.Symbol, Mint: c.OutputToken.Mint, Decimals: c.OutputToken.Decimals}

	strategy := swap.Strategy{Kind: swap.StrategyKind(c.Amount.Strategy)}
	switch strategy.Kind {
	case swap.StrategyFixed:
		strategy.Base = swap.BaseUnits(c.Amount.Value, in.Decimals)
	case swap.StrategyPercentage:
		strategy.Fraction = c.Amount.Percent / 100
	case swap.StrategyRandom:
		strategy.Min = swap.BaseUnits(c.Amount.Min, in.Decimals)
		strategy.Max = swap.BaseUnits(c.Amount.Max, in.Decimals)
	case swap.StrategyCustom:
		strategy.Amounts = make([]uint64, len(c.Amount.Amounts))
		for i, amount := range c.Amount.Amounts {
			strategy.Amounts[i] = swap.BaseUnits(amount, in.Decimals)
		}
	}

	return &swap.Request{
		Operation:   swap.OperationType(c.Operation),
		InputToken:  in,
		OutputToken: out,
		Strategy:    strategy,
		Mode: swap.Mode{
			Kind:          swap.ModeKind(c.Mode.Kind),
			Delay:         time.Duration(c.Mode.DelayMS) * time.Millisecond,
			MaxConcurrent: c.Mode.MaxConcurrent,
			BatchSize:     c.Mode.BatchSize,
		},
		Selection: swap.Selection{
			Kind:    swap.SelectionKind(c.Wallets.Selection),
			Count:   c.Wallets.Count,
			Indices: c.Wallets.Indices,
		},
		SlippageBps:      c.SlippageBps,
		Verify:           c.Verify,
		MaxRetries:       c.MaxRetries,
		RetryBackoffBase: time.Duration(c.RetryBackoffMS) * time.Millisecond,
		QuoteTTL:         time.Duration(c.QuoteTTLSeconds * float64(time.Second)),
		CollectFee:       c.CollectFee,
		MinimumInput:     swap.BaseUnits(c.MinimumInput, in.Decimals),
		RunDeadline:      time.Duration(c.DeadlineSeconds * float64(time.Second)),
		DirectRoutesOnly: c.DirectRoutesOnly,
	}
}
