package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const routerABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "uint256", "name": "amount0Max", "type": "uint256"},
          {"internalType": "uint256", "name": "amount1Max", "type": "uint256"},
          {"internalType": "uint256", "name": "amount0Min", "type": "uint256"},
          {"internalType": "uint256", "name": "amount1Min", "type": "uint256"},
          {"internalType": "uint256", "name": "amountSharesMin", "type": "uint256"},
          {"internalType": "address", "name": "vault", "type": "address"},
          {"internalType": "address", "name": "receiver", "type": "address"},
          {"internalType": "address", "name": "gauge", "type": "address"}
        ],
        "internalType": "struct AddLiquidityData",
        "name": "params_",
        "type": "tuple"
      }
    ],
    "name": "addLiquidity",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"},
      {"internalType": "uint256", "name": "sharesReceived", "type": "uint256"}
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const resolverABIJSON = `[
  {
    "inputs": [
      {"internalType": "contract IArrakisV2", "name": "vaultV2_", "type": "address"},
      {"internalType": "uint256", "name": "amount0Max_", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1Max_", "type": "uint256"}
    ],
    "name": "getMintAmounts",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"},
      {"internalType": "uint256", "name": "mintAmount", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const helperABIJSON = `[
  {
    "inputs": [{"internalType": "contract IArrakisV2", "name": "vault_", "type": "address"}],
    "name": "totalUnderlying",
    "outputs": [
      {"internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const priceFeedABIJSON = `[
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"name": "roundId", "type": "uint80"},
      {"name": "answer", "type": "int256"},
      {"name": "startedAt", "type": "uint256"},
      {"name": "updatedAt", "type": "uint256"},
      {"name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	routerABI    = &lazyABI{json: routerABIJSON}
	resolverABI  = &lazyABI{json: resolverABIJSON}
	helperABI    = &lazyABI{json: helperABIJSON}
	priceFeedABI = &lazyABI{json: priceFeedABIJSON}
)

// RouterABI returns the parsed vault router ABI.
func RouterABI() (abi.ABI, error) { return routerABI.get() }

// ResolverABI returns the parsed vault resolver ABI.
func ResolverABI() (abi.ABI, error) { return resolverABI.get() }

// HelperABI returns the parsed vault helper ABI.
func HelperABI() (abi.ABI, error) { return helperABI.get() }

// PriceFeedABI returns the parsed Chainlink aggregator ABI.
func PriceFeedABI() (abi.ABI, error) { return priceFeedABI.get() }
