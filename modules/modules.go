// Package modules bundles every built-in operation module so binaries can
// install the full catalogue in one call.
package modules

import (
	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/store"
	"github.com/vk/chainflow/modules/bridge"
	"github.com/vk/chainflow/modules/chainselector"
	"github.com/vk/chainflow/modules/limitorder"
	"github.com/vk/chainflow/modules/portfolio"
	"github.com/vk/chainflow/modules/priceimpact"
	"github.com/vk/chainflow/modules/quote"
	"github.com/vk/chainflow/modules/swap"
	"github.com/vk/chainflow/modules/tokenselector"
	"github.com/vk/chainflow/modules/txmonitor"
	"github.com/vk/chainflow/modules/walletconnect"
)

// All returns the built-in modules wired against the given chain clients.
// Contracts and archive may be nil; the bridge module falls back to an
// in-memory store and a no-op archiver.
func All(chains chain.Set, contracts *htlc.Store, archive store.Archiver) []executor.Module {
	return []executor.Module{
		&walletconnect.Module{Chains: chains},
		&chainselector.Module{Chains: chains},
		&tokenselector.Module{},
		&quote.Module{},
		&priceimpact.Module{},
		&swap.Module{Chains: chains},
		&txmonitor.Module{Chains: chains},
		&limitorder.Module{},
		&portfolio.Module{},
		&bridge.Module{Chains: chains, Contracts: contracts, Archive: archive},
	}
}
