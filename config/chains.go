package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"xroute/pkg/types"
)

//go:embed chains.yaml
var chainsYAML []byte

type chainEntry struct {
	types.Chain `yaml:",inline"`
	Tokens      []types.Token `yaml:"tokens"`
}

type chainFile struct {
	Chains []chainEntry `yaml:"chains"`
}

// ChainTable is the static chain and popular-token lookup
type ChainTable struct {
	chains []types.Chain
	byID   map[int64]types.Chain
	tokens map[int64][]types.Token
}

var (
	defaultTable     *ChainTable
	defaultTableOnce sync.Once
)

// Chains returns the table embedded in the binary
func Chains() *ChainTable {
	defaultTableOnce.Do(func() {
		table, err := ParseChains(chainsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded chain table: %v", err))
		}
		defaultTable = table
	})
	return defaultTable
}

// ParseChains builds a ChainTable from YAML
func ParseChains(data []byte) (*ChainTable, error) {
	var file chainFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chain table: %w", err)
	}

	table := &ChainTable{
		byID:   make(map[int64]types.Chain, len(file.Chains)),
		tokens: make(map[int64][]types.Token, len(file.Chains)),
	}
	for _, entry := range file.Chains {
		chain := entry.Chain
		if chain.ID == 0 {
			return nil, fmt.Errorf("chain %q has no id", chain.Name)
		}
		if _, exists := table.byID[chain.ID]; exists {
			return nil, fmt.Errorf("duplicate chain id %d", chain.ID)
		}
		if chain.Type == "" {
			chain.Type = types.ChainTypeEVM
		}

		tokens := make([]types.Token, 0, len(entry.Tokens))
		for _, token := range entry.Tokens {
			token.ChainID = chain.ID
			tokens = append(tokens, token)
		}

		table.chains = append(table.chains, chain)
		table.byID[chain.ID] = chain
		table.tokens[chain.ID] = tokens
	}
	return table, nil
}

// List returns every chain in table order
func (t *ChainTable) List() []types.Chain {
	out := make([]types.Chain, len(t.chains))
	copy(out, t.chains)
	return out
}

// Get returns the chain with the given id
func (t *ChainTable) Get(id int64) (types.Chain, bool) {
	chain, ok := t.byID[id]
	return chain, ok
}

// Lookup resolves a chain from a numeric id, name or short name
func (t *ChainTable) Lookup(nameOrID string) (types.Chain, error) {
	key := strings.TrimSpace(nameOrID)
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		if chain, ok := t.byID[id]; ok {
			return chain, nil
		}
		return types.Chain{}, fmt.Errorf("chain %d is not supported", id)
	}
	for _, chain := range t.chains {
		if strings.EqualFold(chain.Name, key) || strings.EqualFold(chain.ShortName, key) || strings.EqualFold(chain.OneClickCode, key) {
			return chain, nil
		}
	}
	return types.Chain{}, fmt.Errorf("chain %q is not supported", nameOrID)
}

// PopularTokens returns the curated tokens of a chain
func (t *ChainTable) PopularTokens(chainID int64) []types.Token {
	tokens := t.tokens[chainID]
	out := make([]types.Token, len(tokens))
	copy(out, tokens)
	return out
}

// FindToken resolves a popular token by symbol or address
func (t *ChainTable) FindToken(chainID int64, symbolOrAddress string) (types.Token, error) {
	key := strings.TrimSpace(symbolOrAddress)
	for _, token := range t.tokens[chainID] {
		if strings.EqualFold(token.Symbol, key) || strings.EqualFold(token.Address, key) {
			return token, nil
		}
	}
	return types.Token{}, fmt.Errorf("token %s not found on chain %d", symbolOrAddress, chainID)
}

// ByCode maps 1Click blockchain codes to chains
func (t *ChainTable) ByCode() map[string]types.Chain {
	out := make(map[string]types.Chain, len(t.chains))
	for _, chain := range t.chains {
		if chain.OneClickCode != "" {
			out[chain.OneClickCode] = chain
		}
	}
	return out
}

// IDs returns the chain ids in ascending order
func (t *ChainTable) IDs() []int64 {
	ids := make([]int64, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
