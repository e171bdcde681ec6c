package wallet

import (
	"context"

	"github.com/solfleet/solfleet/internal/swap"
)

// StaticSource serves a fixed fleet with the same balance for every wallet.
// Used for dry runs, where no RPC endpoint is available.
type StaticSource struct {
	fleet   []swap.Wallet
	balance uint64
}

// NewStaticSource wraps fleet with a constant per-wallet balance.
func NewStaticSource(fleet []swap.Wallet, balance uint64) *StaticSource {
	return &StaticSource{fleet: fleet, balance: balance}
}

func (s *StaticSource) ListWallets(context.Context) ([]swap.Wallet, error) {
	return s.fleet, nil
}

func (s *StaticSource) Balance(context.Context, string, string) (uint64, error) {
	return s.balance, nil
}

var _ swap.WalletSource = (*StaticSource)(nil)
