package chain

import (
	"sort"
	"strings"
	"time"

	"stablepay-api/internal/config"
)

// Chain 已配置的链
type Chain struct {
	Name             string
	Network          string
	Token            string
	RpcUrl           string
	TokenContract    string
	Decimals         int32
	RequiredConfirms int64
	WindowSize       uint64
	InitialLookback  uint64
	PollInterval     time.Duration
	PlatformAddress  string
}

// IsMainnet 主网
func (c Chain) IsMainnet() bool { return strings.EqualFold(c.Network, "mainnet") }

type Registry struct {
	chains map[string]Chain
}

func NewRegistry(chains ...Chain) *Registry {
	r := &Registry{chains: make(map[string]Chain, len(chains))}
	for _, c := range chains {
		r.chains[c.Name] = c
	}
	return r
}

// NewRegistryFromConfig 平台默认收款地址来自 order.platformAddresses
func NewRegistryFromConfig(cfgs []config.ChainCfg, platform map[string]string) *Registry {
	chains := make([]Chain, 0, len(cfgs))
	for _, c := range cfgs {
		chains = append(chains, Chain{
			Name:             c.Name,
			Network:          c.Network,
			Token:            c.Token,
			RpcUrl:           c.RpcUrl,
			TokenContract:    c.TokenContract,
			Decimals:         c.Decimals,
			RequiredConfirms: c.RequiredConfirms,
			WindowSize:       uint64(c.WindowSize),
			InitialLookback:  uint64(c.InitialLookback),
			PollInterval:     time.Duration(c.PollIntervalSec) * time.Second,
			PlatformAddress:  platform[c.Name],
		})
	}
	return NewRegistry(chains...)
}

func (r *Registry) Get(name string) (Chain, bool) {
	c, ok := r.chains[name]
	return c, ok
}

// All 按名称排序
func (r *Registry) All() []Chain {
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
