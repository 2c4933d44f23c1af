// Package wallet signs and broadcasts transaction descriptors with a locally
// held key. It accepts both descriptor shapes: the ABI form is packed from
// the attached fragment, the raw form carries pre-encoded calldata.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/harshkas4na/Protocol-Pal/pkg/executor"
	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
)

// Backend is the write-side RPC surface the signer needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyedSigner signs descriptors with a fixed private key and submits them
// through the backend. A fixed gas limit is used for every call.
type KeyedSigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  *big.Int
	gasLimit uint64
	backend  Backend
	nonces   nonceCache
	logger   logger.Logger
}

var _ executor.Broadcaster = (*KeyedSigner)(nil)

// NewKeyedSigner creates a signer from a hex private key.
func NewKeyedSigner(hexKey string, chainID int64, gasLimit uint64, backend Backend, lg logger.Logger) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return &KeyedSigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		gasLimit: gasLimit,
		backend:  backend,
		logger:   lg,
	}, nil
}

// Address returns the signer's account address.
func (s *KeyedSigner) Address() common.Address {
	return s.address
}

// SignAndBroadcast encodes, signs and submits the descriptor, returning the
// transaction hash.
func (s *KeyedSigner) SignAndBroadcast(ctx context.Context, d *models.TransactionDescriptor) (string, error) {
	to, data, err := EncodeCall(d)
	if err != nil {
		return "", err
	}
	value, err := ParseEther(d.Value)
	if err != nil {
		return "", err
	}

	nonce, err := s.nonces.next(ctx, s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", executor.ErrBroadcastFailed, err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		s.nonces.release(nonce)
		return "", fmt.Errorf("%w: failed to get gas price: %v", executor.ErrBroadcastFailed, err)
	}

	tx := types.NewTransaction(nonce, to, value, s.gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		s.nonces.release(nonce)
		return "", fmt.Errorf("%w: %v", executor.ErrSignatureRejected, err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		s.nonces.release(nonce)
		s.nonces.invalidate()
		return "", fmt.Errorf("%w: %v", executor.ErrBroadcastFailed, err)
	}

	hash := signed.Hash().Hex()
	s.logger.InfoWithScope(logger.Wallet, "Sent %s to %s (nonce=%d value=%s)",
		hash, to.Hex(), nonce, value.String())
	return hash, nil
}

// EncodeCall returns the target address and calldata for a descriptor.
func EncodeCall(d *models.TransactionDescriptor) (common.Address, []byte, error) {
	if d.IsRaw() {
		if !common.IsHexAddress(d.To) {
			return common.Address{}, nil, fmt.Errorf("invalid target address %q", d.To)
		}
		data, err := hexutil.Decode(d.Data)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("invalid calldata: %v", err)
		}
		return common.HexToAddress(d.To), data, nil
	}

	if !common.IsHexAddress(d.ContractAddress) {
		return common.Address{}, nil, fmt.Errorf("invalid contract address %q", d.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(string(d.ABI)))
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to parse ABI fragment: %v", err)
	}
	method, ok := parsed.Methods[d.FunctionName]
	if !ok {
		return common.Address{}, nil, fmt.Errorf("ABI fragment has no function %q", d.FunctionName)
	}

	args, err := coerceArgs(method, d.Args)
	if err != nil {
		return common.Address{}, nil, err
	}
	data, err := parsed.Pack(d.FunctionName, args...)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to encode %s call: %v", d.FunctionName, err)
	}
	return common.HexToAddress(d.ContractAddress), data, nil
}
