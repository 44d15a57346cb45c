package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ErrUnknownChain is returned for a chain id with no confirmation setting.
var ErrUnknownChain = errors.New("chain is not configured")

// ChainTable maps chain ids to the confirmations a step must reach.
type ChainTable struct {
	required     map[uint64]uint64
	allowUnknown bool
}

// NewChainTable copies required. With allowUnknown, unlisted chains need zero
// confirmations instead of failing.
func NewChainTable(required map[uint64]uint64, allowUnknown bool) ChainTable {
	table := ChainTable{required: make(map[uint64]uint64, len(required)), allowUnknown: allowUnknown}
	for id, n := range required {
		table.required[id] = n
	}
	return table
}

// ParseChainTable builds a table from "chainID" -> "confirmations" strings.
func ParseChainTable(entries map[string]string, allowUnknown bool) (ChainTable, error) {
	required := make(map[uint64]uint64, len(entries))
	for key, value := range entries {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return ChainTable{}, fmt.Errorf("invalid chain id %q", key)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return ChainTable{}, fmt.Errorf("invalid confirmations for chain %d: %q", id, value)
		}
		required[id] = n
	}
	return NewChainTable(required, allowUnknown), nil
}

// RequiredConfirmations returns the confirmation target for chainID.
func (t ChainTable) RequiredConfirmations(chainID uint64) (uint64, error) {
	if n, ok := t.required[chainID]; ok {
		return n, nil
	}
	if t.allowUnknown {
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %d (configured: %v)", ErrUnknownChain, chainID, t.Supported())
}

// Supported lists the configured chain ids in ascending order.
func (t ChainTable) Supported() []uint64 {
	ids := make([]uint64, 0, len(t.required))
	for id := range t.required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
