package contracts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"vaultDeposit/internal/model"
)

const tokenMetaCacheSize = 256

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	cache *lru.Cache[common.Address, model.TokenMeta]
}

func NewTokenMetaCache() *TokenMetaCache {
	cache, err := lru.New[common.Address, model.TokenMeta](tokenMetaCacheSize)
	if err != nil {
		panic(fmt.Sprintf("token meta cache: %v", err))
	}
	return &TokenMetaCache{cache: cache}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	return c.cache.Get(address)
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.cache.Add(address, meta)
}

// LoadTokenMeta returns cached metadata or fetches and caches it.
func (c *TokenMetaCache) LoadTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	if meta, ok := c.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		return meta, err
	}
	c.Set(token, meta)
	return meta, nil
}

// FetchTokenMeta reads decimals, symbol and name. Decimals are required;
// symbol and name fall back to the bytes32 variant used by older tokens and
// are left empty when neither call works.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	meta := model.TokenMeta{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}

	standard, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	legacy, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, standard, "decimals", nil)
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, err
	}

	text := func(method string) string {
		if values, err := callMethod(ctx, caller, token, standard, method, nil); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := callMethod(ctx, caller, token, legacy, method, nil)
		if err != nil {
			logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
			return ""
		}
		s, _ := bytes32ToString(values[0])
		return s
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	var raw []byte
	switch v := value.(type) {
	case [32]byte:
		raw = v[:]
	case []byte:
		raw = v
	default:
		return "", false
	}
	return string(bytes.TrimRight(raw, "\x00")), true
}
