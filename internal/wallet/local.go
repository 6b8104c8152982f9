// Package wallet provides a private-key signer for the swap executor.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"swapEngine/internal/swap"
)

// Backend is the node access a LocalSigner needs. *chain.Client satisfies it.
type Backend interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// LocalSigner signs legacy EIP-155 transactions with an in-memory key.
type LocalSigner struct {
	backend    Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address

	// mu serializes nonce reads and sends so back-to-back transactions do not share a nonce.
	mu      sync.Mutex
	chainID *big.Int
}

// NewLocalSigner parses a hex private key (with or without 0x).
func NewLocalSigner(backend Backend, privateKeyHex string) (*LocalSigner, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	pkHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &LocalSigner{
		backend:    backend,
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the signer's account.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SendTransaction fills nonce, gas price and gas limit when missing, signs and broadcasts.
func (s *LocalSigner) SendTransaction(ctx context.Context, req swap.TxRequest) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID == nil {
		chainID, err := s.backend.GetChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("get chain id: %w", err)
		}
		s.chainID = chainID
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		if gasPrice, err = s.backend.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("get gas price: %w", err)
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	to := req.To
	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = s.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     s.address,
			To:       &to,
			GasPrice: gasPrice,
			Value:    value,
			Data:     req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signer := types.NewEIP155Signer(s.chainID)
	signed, err := types.SignTx(tx, signer, s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash(), nil
}

// WaitForTransaction blocks until hash is mined or ctx is done.
func (s *LocalSigner) WaitForTransaction(ctx context.Context, hash common.Hash) (*swap.TxReceipt, error) {
	receipt, err := s.backend.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return &swap.TxReceipt{
		Hash:              receipt.TxHash,
		BlockNumber:       block,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Status:            receipt.Status,
	}, nil
}
