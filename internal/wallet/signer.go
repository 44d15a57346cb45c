package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"vaultDeposit/internal/contracts"
	"vaultDeposit/internal/model"
)

// ErrNoKey is returned when a write is attempted without a signing key.
var ErrNoKey = errors.New("wallet: no private key configured")

// Backend is the subset of chain.Client the signer needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer holds a local key and submits EIP-1559 transactions through a Backend.
type Signer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	logger  *zap.Logger
}

// NewSigner parses hexKey (with or without 0x). An empty key yields a
// disconnected signer that can still report a wallet context.
func NewSigner(backend Backend, hexKey string, chainID uint64, logger *zap.Logger) (*Signer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Signer{
		backend: backend,
		chainID: new(big.Int).SetUint64(chainID),
		logger:  logger,
	}

	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return s, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	s.key = key
	s.address = crypto.PubkeyToAddress(key.PublicKey)
	return s, nil
}

// Address returns the signing account, or the zero address when disconnected.
func (s *Signer) Address() common.Address {
	return s.address
}

// Connected reports whether a key is loaded.
func (s *Signer) Connected() bool {
	return s.key != nil
}

// Context describes the wallet as seen on the chain the RPC reports.
func (s *Signer) Context(connectedChainID uint64) model.WalletContext {
	return model.WalletContext{
		Address:     s.address,
		IsConnected: s.Connected(),
		ChainID:     connectedChainID,
	}
}

// Simulate runs the call with eth_call from the signing account.
func (s *Signer) Simulate(ctx context.Context, call contracts.Call) error {
	if !s.Connected() {
		return ErrNoKey
	}
	to := call.To
	_, err := s.backend.CallContract(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: call.Data,
	}, nil)
	if err != nil {
		return fmt.Errorf("simulate %s: %w", call.Method, err)
	}
	return nil
}

// Submit signs and broadcasts the call, returning the transaction hash.
func (s *Signer) Submit(ctx context.Context, call contracts.Call) (common.Hash, error) {
	if !s.Connected() {
		return common.Hash{}, ErrNoKey
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get head: %w", err)
	}
	feeCap := feeCapFor(head.BaseFee, tip)

	to := call.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      s.address,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      call.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      call.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	s.logger.Info("transaction sent",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return signed.Hash(), nil
}

// feeCapFor returns 2*baseFee + tip, or tip when the head carries no base fee.
func feeCapFor(baseFee, tip *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tip)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	return feeCap.Add(feeCap, tip)
}
