// Package balance reports native and ERC-20 holdings for a wallet. Per-token
// read failures degrade to an error entry instead of failing the whole
// report, and unsupported symbols are skipped with a warning.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/metrics"
	"github.com/harshkas4na/Protocol-Pal/pkg/registry"
	"github.com/harshkas4na/Protocol-Pal/pkg/wallet"
)

// Reader is the chain read surface the service needs.
type Reader interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) uint8
}

// TokenBalance is one token line of a report.
type TokenBalance struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Raw      string `json:"raw"`
	Decimals uint8  `json:"decimals"`
	Error    string `json:"error,omitempty"`
}

// Report is the full holdings answer for one wallet.
type Report struct {
	Address string         `json:"address"`
	Native  string         `json:"native"`
	Tokens  []TokenBalance `json:"tokens"`
}

// Service reads balances through the gateway against the token registry.
type Service struct {
	reader   Reader
	registry *registry.Registry
	logger   logger.Logger
}

// New creates a balance service.
func New(reader Reader, reg *registry.Registry, lg logger.Logger) *Service {
	return &Service{reader: reader, registry: reg, logger: lg}
}

// Check reports the wallet's native balance and the requested token balances.
// An empty symbols list means every registered token. Unknown symbols are
// skipped, and a token whose read fails gets an error entry so the rest of
// the report survives.
func (s *Service) Check(ctx context.Context, address string, symbols []string) (*Report, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid wallet address %q", address)
	}
	holder := common.HexToAddress(address)

	native, err := s.reader.NativeBalance(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("failed to read native balance: %v", err)
	}

	if len(symbols) == 0 {
		symbols = s.registry.TokenSymbols()
	}

	report := &Report{
		Address: address,
		Native:  wallet.FormatUnits(native, 18, 6),
	}

	for _, symbol := range symbols {
		token, ok := s.registry.Token(symbol)
		if !ok {
			s.logger.NoticeWithScope(logger.Balance, "Unknown token skipped: %s", symbol)
			continue
		}

		// Registry entries loaded from an overrides file may not carry
		// decimals; ask the token contract in that case.
		decimals := token.Decimals
		if decimals == 0 {
			decimals = s.reader.TokenDecimals(ctx, token.Address)
		}

		entry := TokenBalance{
			Symbol:   token.Symbol,
			Address:  token.Address.Hex(),
			Decimals: decimals,
		}

		raw, err := s.reader.TokenBalance(ctx, token.Address, holder)
		if err != nil {
			s.logger.ErrorWithScope(logger.Balance, "Failed to read %s balance: %v", token.Symbol, err)
			entry.Error = err.Error()
			report.Tokens = append(report.Tokens, entry)
			continue
		}

		entry.Raw = raw.String()
		entry.Amount = formatTokenAmount(raw, decimals)
		report.Tokens = append(report.Tokens, entry)

		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
		approx, _ := new(big.Rat).SetFrac(raw, scale).Float64()
		metrics.TokenBalance.WithLabelValues(token.Symbol).Set(approx)
	}

	return report, nil
}

// formatTokenAmount mirrors the display convention for stablecoins: two
// places for 6-decimal tokens, six for everything else.
func formatTokenAmount(raw *big.Int, decimals uint8) string {
	places := 6
	if decimals == 6 {
		places = 2
	}
	return wallet.FormatUnits(raw, decimals, places)
}

// Text renders the report as the plain message shown in chat.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet Balance for %s\n\n", shortenAddress(r.Address))
	fmt.Fprintf(&b, "Native ETH:\n• %s ETH\n\n", r.Native)
	b.WriteString("ERC20 Tokens:\n")
	for _, token := range r.Tokens {
		if token.Error != "" {
			fmt.Fprintf(&b, "• %s: Error fetching balance\n", token.Symbol)
			continue
		}
		fmt.Fprintf(&b, "• %s %s\n", token.Amount, token.Symbol)
	}
	b.WriteString("\nNetwork: Sepolia Testnet")
	return b.String()
}

func shortenAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
