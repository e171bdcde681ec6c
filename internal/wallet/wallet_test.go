package wallet

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFleetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFleet(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	content := fmt.Sprintf(`wallets:
  - name: main
    private_key: %s
  - name: watch
    address: %s
`, key.String(), solana.NewWallet().PublicKey().String())

	fleet, err := LoadFleet(writeFleetFile(t, content))
	require.NoError(t, err)
	require.Len(t, fleet, 2)

	assert.Equal(t, 0, fleet[0].Index)
	assert.Equal(t, key.PublicKey().String(), fleet[0].Address)
	require.True(t, fleet[0].HasSigningKey())
	got, err := fleet[0].Keys()
	require.NoError(t, err)
	assert.Equal(t, key.String(), got)

	assert.Equal(t, 1, fleet[1].Index)
	assert.False(t, fleet[1].HasSigningKey())
}

func TestLoadFleetBase64Key(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	raw, err := base58.Decode(key.String())
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	content := fmt.Sprintf("wallets:\n  - name: b64\n    private_key: %s\n", encoded)
	fleet, err := LoadFleet(writeFleetFile(t, content))
	require.NoError(t, err)
	require.Len(t, fleet, 1)

	got, err := fleet[0].Keys()
	require.NoError(t, err)
	assert.Equal(t, key.String(), got, "base64 keys are normalized to base58")
	assert.Equal(t, key.PublicKey().String(), fleet[0].Address)
}

func TestLoadFleetRejectsBrokenKey(t *testing.T) {
	content := "wallets:\n  - name: broken\n    private_key: not-a-key\n"
	_, err := LoadFleet(writeFleetFile(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadFleetRejectsEmptyEntry(t *testing.T) {
	content := "wallets:\n  - name: empty\n"
	_, err := LoadFleet(writeFleetFile(t, content))
	require.Error(t, err)
}

func TestLoadFleetRejectsEmptyFile(t *testing.T) {
	_, err := LoadFleet(writeFleetFile(t, "wallets: []\n"))
	require.Error(t, err)
}

func TestLoadFleetMissingFile(t *testing.T) {
	_, err := LoadFleet(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	content := fmt.Sprintf("wallets:\n  - name: one\n    private_key: %s\n", key.String())
	loaded, err := LoadFleet(writeFleetFile(t, content))
	require.NoError(t, err)

	source := NewStaticSource(loaded, 42)
	wallets, err := source.ListWallets(context.Background())
	require.NoError(t, err)
	assert.Len(t, wallets, 1)

	balance, err := source.Balance(context.Background(), loaded[0].Address, "any-mint")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), balance)
}
