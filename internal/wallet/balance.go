package wallet

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/solfleet/solfleet/internal/swap"
)

// NativeMint is the wrapped-SOL mint; balances for it come from the account
// lamports rather than a token account.
const NativeMint = "So11111111111111111111111111111111111111112"

// rpcBalances is the narrow RPC surface the source needs.
type rpcBalances interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Source is the fleet plus RPC balance lookups.
type Source struct {
	fleet  []swap.Wallet
	rpc    rpcBalances
	logger *zap.Logger
}

// NewSource loads the fleet from path and binds it to an RPC endpoint.
func NewSource(path, rpcEndpoint string, logger *zap.Logger) (*Source, error) {
	fleet, err := LoadFleet(path)
	if err != nil {
		return nil, err
	}
	return &Source{
		fleet:  fleet,
		rpc:    rpc.New(rpcEndpoint),
		logger: logger.Named("wallets"),
	}, nil
}

// NewSourceWithRPC binds an already loaded fleet to an RPC client.
func NewSourceWithRPC(fleet []swap.Wallet, client rpcBalances, logger *zap.Logger) *Source {
	return &Source{fleet: fleet, rpc: client, logger: logger.Named("wallets")}
}

// ListWallets returns the fleet in file order.
func (s *Source) ListWallets(context.Context) ([]swap.Wallet, error) {
	return s.fleet, nil
}

// Balance returns the wallet's balance for mint in base units. SOL comes
// from lamports; SPL tokens from the associated token account. A missing
// token account is a zero balance, not an error.
func (s *Source) Balance(ctx context.Context, address, mint string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}

	if mint == NativeMint {
		result, err := s.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, fmt.Errorf("fetching SOL balance: %w", err)
		}
		return result.Value, nil
	}

	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return 0, fmt.Errorf("deriving token account: %w", err)
	}

	result, err := s.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		// An owner that never held the token has no account to query.
		s.logger.Debug("token account lookup failed, assuming zero",
			zap.String("owner", address),
			zap.String("mint", mint),
			zap.Error(err))
		return 0, nil
	}
	if result == nil || result.Value == nil || result.Value.Amount == "" {
		return 0, nil
	}

	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing token balance %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

var _ swap.WalletSource = (*Source)(nil)
