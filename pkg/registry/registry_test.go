package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSepolia(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)

	router, ok := r.Contract(KeyUniswapRouter)
	require.True(t, ok)
	assert.Equal(t, SepoliaUniswapRouterAddress, router.Address.Hex())
	assert.True(t, router.HasFunction("swapExactETHForTokens"))
	assert.True(t, router.HasFunction("swapExactTokensForETH"))
	assert.True(t, router.HasFunction("swapExactTokensForTokens"))
	assert.False(t, router.HasFunction("addLiquidity"))

	drop, ok := r.Contract(KeyNFTDrop)
	require.True(t, ok)
	assert.True(t, drop.HasFunction("claim"))

	_, ok = r.Contract("CURVE_POOL")
	assert.False(t, ok)
}

func TestTokenLookup(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)

	usdc, ok := r.Token("USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.Equal(t, SepoliaUSDCAddress, usdc.Address.Hex())

	// Lookup is case-insensitive.
	lower, ok := r.Token("usdc")
	require.True(t, ok)
	assert.Equal(t, usdc, lower)

	_, ok = r.Token("DOGE")
	assert.False(t, ok)

	assert.Equal(t, []string{"WETH", "USDC", "DAI", "USDT", "LINK", "UNI"}, r.TokenSymbols())
}

func TestFragment(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)
	router, _ := r.Contract(KeyUniswapRouter)

	frag, err := router.Fragment("swapExactTokensForETH")
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(frag, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "swapExactTokensForETH", entries[0]["name"])

	_, err = router.Fragment("addLiquidity")
	assert.Error(t, err)
}

func TestApproveFragment(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(r.ApproveFragment(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "approve", entries[0]["name"])
}

func TestApplyFile(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `
contracts:
  UNISWAP_ROUTER:
    address: "0x9999999999999999999999999999999999999999"
tokens:
  pepe:
    address: "0x8888888888888888888888888888888888888888"
  usdc:
    address: "0x7777777777777777777777777777777777777777"
    decimals: 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, r.ApplyFile(path))

	router, _ := r.Contract(KeyUniswapRouter)
	assert.Equal(t, common.HexToAddress("0x9999999999999999999999999999999999999999"), router.Address)
	// ABI survives an address-only override.
	assert.True(t, router.HasFunction("swapExactETHForTokens"))

	pepe, ok := r.Token("PEPE")
	require.True(t, ok)
	assert.Equal(t, uint8(0), pepe.Decimals, "unspecified decimals are resolved on chain")

	usdc, _ := r.Token("USDC")
	assert.Equal(t, common.HexToAddress("0x7777777777777777777777777777777777777777"), usdc.Address)

	assert.Contains(t, r.TokenSymbols(), "PEPE")
}

func TestApplyFileErrors(t *testing.T) {
	r, err := NewSepolia()
	require.NoError(t, err)

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, r.ApplyFile(filepath.Join(t.TempDir(), "nope.yaml")))
	})

	t.Run("unknown contract without abi", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.yaml")
		require.NoError(t, os.WriteFile(path, []byte("contracts:\n  NEW_THING:\n    address: \"0x9999999999999999999999999999999999999999\"\n"), 0o600))
		assert.Error(t, r.ApplyFile(path))
	})

	t.Run("broken yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.yaml")
		require.NoError(t, os.WriteFile(path, []byte("contracts: ["), 0o600))
		assert.Error(t, r.ApplyFile(path))
	})
}
