// Package registry holds the static contract and token configuration the
// descriptor builder works against: deployed addresses, callable interfaces
// and token metadata for the target network. The registry is immutable once
// constructed and injected into the components that need it, so tests and
// alternative networks can swap it out wholesale.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Known contract keys emitted by the intent resolver.
const (
	KeyUniswapRouter = "UNISWAP_ROUTER"
	KeyNFTDrop       = "NFT_DROP"
)

// Sepolia deployment addresses.
const (
	SepoliaUniswapRouterAddress = "0xC532a74256D3Db42D0Bf7a0400fEFDbad7694008"
	SepoliaNFTDropAddress       = "0x12f8e37677b8934FE4F21E1fE87e18152408e77d"

	SepoliaWETHAddress = "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9"
	SepoliaUSDCAddress = "0x94a9D9AC8a22534E3FaCa9F4e7F2E2cf85d5E4C8"
	SepoliaDAIAddress  = "0xFF34B3d4Aee8ddCd6F9AFFFB6Fe49bD371b8a357"
	SepoliaUSDTAddress = "0xaA8E23Fb1079EA71e0a56F48a2aA51851D8433D0"
	SepoliaLINKAddress = "0xf8Fb3713D459D7C1018BD0A49D19b4C44290EBE5"
	SepoliaUNIAddress  = "0x4c4d5DFF92B35Df3293c46ACdf58FE0674940b64"
)

// UniswapRouterABI covers the three swap variants the resolver can request.
const UniswapRouterABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactETHForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForETH",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// NFTDropABI covers the claim entrypoint of the drop contract.
const NFTDropABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "_receiver", "type": "address"},
			{"internalType": "uint256", "name": "_quantity", "type": "uint256"},
			{"internalType": "address", "name": "_currency", "type": "address"},
			{"internalType": "uint256", "name": "_pricePerToken", "type": "uint256"},
			{
				"components": [
					{"internalType": "bytes32[]", "name": "proof", "type": "bytes32[]"},
					{"internalType": "uint256", "name": "quantityLimitPerWallet", "type": "uint256"},
					{"internalType": "uint256", "name": "pricePerToken", "type": "uint256"},
					{"internalType": "address", "name": "currency", "type": "address"}
				],
				"internalType": "struct IClaimCondition.AllowlistProof",
				"name": "_allowlistProof",
				"type": "tuple"
			},
			{"internalType": "bytes", "name": "_data", "type": "bytes"}
		],
		"name": "claim",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// ERC20ApproveABI is the minimal fragment used for approval descriptors.
const ERC20ApproveABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ContractSpec describes one deployed contract the resolver may target.
type ContractSpec struct {
	Key     string
	Address common.Address
	ABI     abi.ABI

	rawFragments []namedFragment
}

type namedFragment struct {
	name string
	raw  json.RawMessage
}

// Token describes an ERC-20 token supported by balance reporting.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Registry is the immutable contract and token mapping for one network.
type Registry struct {
	contracts   map[string]*ContractSpec
	tokens      map[string]Token
	tokenOrder  []string
	approveFrag json.RawMessage
}

// NewSepolia builds the registry with the compiled-in Sepolia deployment.
func NewSepolia() (*Registry, error) {
	r := &Registry{
		contracts: make(map[string]*ContractSpec),
		tokens:    make(map[string]Token),
	}

	if err := r.addContract(KeyUniswapRouter, SepoliaUniswapRouterAddress, UniswapRouterABI); err != nil {
		return nil, err
	}
	if err := r.addContract(KeyNFTDrop, SepoliaNFTDropAddress, NFTDropABI); err != nil {
		return nil, err
	}

	r.addToken("WETH", SepoliaWETHAddress, 18)
	r.addToken("USDC", SepoliaUSDCAddress, 6)
	r.addToken("DAI", SepoliaDAIAddress, 18)
	r.addToken("USDT", SepoliaUSDTAddress, 6)
	r.addToken("LINK", SepoliaLINKAddress, 18)
	r.addToken("UNI", SepoliaUNIAddress, 18)

	frag, err := parseFragments(ERC20ApproveABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 approve ABI: %v", err)
	}
	r.approveFrag = frag[0].raw

	return r, nil
}

func (r *Registry) addContract(key, address, abiJSON string) error {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return fmt.Errorf("failed to parse ABI for %s: %v", key, err)
	}
	fragments, err := parseFragments(abiJSON)
	if err != nil {
		return fmt.Errorf("failed to split ABI for %s: %v", key, err)
	}
	r.contracts[key] = &ContractSpec{
		Key:          key,
		Address:      common.HexToAddress(address),
		ABI:          parsed,
		rawFragments: fragments,
	}
	return nil
}

func (r *Registry) addToken(symbol, address string, decimals uint8) {
	r.tokens[symbol] = Token{
		Symbol:   symbol,
		Address:  common.HexToAddress(address),
		Decimals: decimals,
	}
	r.tokenOrder = append(r.tokenOrder, symbol)
}

// parseFragments splits an ABI JSON array into its named entries so a minimal
// single-function fragment can be reassembled later.
func parseFragments(abiJSON string) ([]namedFragment, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(abiJSON), &entries); err != nil {
		return nil, err
	}

	fragments := make([]namedFragment, 0, len(entries))
	for _, entry := range entries {
		var probe struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			return nil, err
		}
		fragments = append(fragments, namedFragment{name: probe.Name, raw: entry})
	}
	return fragments, nil
}

// Contract looks up a registered contract by key.
func (r *Registry) Contract(key string) (*ContractSpec, bool) {
	spec, ok := r.contracts[key]
	return spec, ok
}

// Token looks up a token by its symbol.
func (r *Registry) Token(symbol string) (Token, bool) {
	token, ok := r.tokens[strings.ToUpper(symbol)]
	return token, ok
}

// TokenSymbols returns all supported token symbols in registration order.
func (r *Registry) TokenSymbols() []string {
	symbols := make([]string, len(r.tokenOrder))
	copy(symbols, r.tokenOrder)
	return symbols
}

// ApproveFragment returns the single-function ERC-20 approve ABI fragment.
func (r *Registry) ApproveFragment() json.RawMessage {
	frag, _ := json.Marshal([]json.RawMessage{r.approveFrag})
	return frag
}

// HasFunction reports whether the contract exposes the named function.
func (cs *ContractSpec) HasFunction(name string) bool {
	_, ok := cs.ABI.Methods[name]
	return ok
}

// Fragment returns the minimal ABI fragment containing only the named
// function. Keeping the fragment to a single entry keeps downstream encoding
// unambiguous when a contract exposes overloaded names.
func (cs *ContractSpec) Fragment(functionName string) (json.RawMessage, error) {
	for _, frag := range cs.rawFragments {
		if frag.name == functionName {
			return json.Marshal([]json.RawMessage{frag.raw})
		}
	}
	return nil, fmt.Errorf("function %s not found in %s ABI", functionName, cs.Key)
}

// overrideFile is the YAML shape accepted by ApplyFile.
type overrideFile struct {
	Contracts map[string]struct {
		Address string `yaml:"address"`
		ABI     string `yaml:"abi"`
	} `yaml:"contracts"`
	Tokens map[string]struct {
		Address  string `yaml:"address"`
		Decimals uint8  `yaml:"decimals"`
	} `yaml:"tokens"`
}

// ApplyFile overlays contract and token entries from a YAML file, so the
// registry can point at a different network deployment without a rebuild.
func (r *Registry) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registry file: %v", err)
	}

	var overrides overrideFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse registry file: %v", err)
	}

	for key, entry := range overrides.Contracts {
		if entry.ABI != "" {
			if err := r.addContract(key, entry.Address, entry.ABI); err != nil {
				return err
			}
			continue
		}
		spec, ok := r.contracts[key]
		if !ok {
			return fmt.Errorf("registry file overrides unknown contract %s without an ABI", key)
		}
		spec.Address = common.HexToAddress(entry.Address)
	}

	// Zero decimals means the file did not say; readers resolve the real
	// value from the token contract.
	for symbol, entry := range overrides.Tokens {
		symbol = strings.ToUpper(symbol)
		if _, ok := r.tokens[symbol]; !ok {
			r.tokenOrder = append(r.tokenOrder, symbol)
		}
		r.tokens[symbol] = Token{
			Symbol:   symbol,
			Address:  common.HexToAddress(entry.Address),
			Decimals: entry.Decimals,
		}
	}

	return nil
}
