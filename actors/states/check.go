package states

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/account"
	"github.com/vestnft/vesting-actors/actors/builtin/asset"
	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/system"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
)

type vestingSummary struct {
	*vesting.StateSummary
	tokenActor addr.Address
}

type nftSummary struct {
	*nft.StateSummary
	vestingActor addr.Address
}

// Within this code, Go errors are not expected, but are often converted to messages so that execution
// can continue to find more errors rather than fail with no insight.
// Only errors that are particularly troublesome to recover from should propagate as Go errors.
func CheckStateInvariants(tree *Tree, epoch abi.ChainEpoch, curves vesting.CurveSet) (*builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}
	vestingSummaries := make(map[addr.Address]vestingSummary)
	nftSummaries := make(map[addr.Address]nftSummary)
	assetSummaries := make(map[addr.Address]*asset.StateSummary)
	codes := make(map[addr.Address]cid.Cid)
	var builtins *manifest.Manifest

	if err := tree.ForEach(func(key addr.Address, actor *Actor) error {
		acc := acc.WithPrefix("%v ", key) // Intentional shadow
		if key.Protocol() != addr.ID {
			acc.Addf("unexpected address protocol in actor table: %v", key)
		}

		codes[key] = actor.Code

		switch actor.Code {
		case builtin.SystemActorCodeID:
			var st system.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			acc.Require(key == builtin.SystemActorAddr, "system actor at %v", key)
			m, err := st.LoadManifest(tree.Store)
			acc.RequireNoError(err, "failed to load manifest")
			if err == nil {
				builtins = m
			}

		case builtin.AccountActorCodeID:
			var st account.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			_, msgs := account.CheckStateInvariants(&st)
			acc.WithPrefix("account: ").AddAll(msgs)

		case builtin.NFTActorCodeID:
			var st nft.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			summary, msgs := nft.CheckStateInvariants(&st, tree.Store)
			acc.WithPrefix("nft: ").AddAll(msgs)
			nftSummaries[key] = nftSummary{summary, st.VestingActor}

		case builtin.VestingActorCodeID:
			var st vesting.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			summary, msgs := vesting.CheckStateInvariants(&st, tree.Store, curves, epoch)
			acc.WithPrefix("vesting: ").AddAll(msgs)
			vestingSummaries[key] = vestingSummary{summary, st.TokenActor}

		case builtin.AssetActorCodeID:
			var st asset.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			summary, msgs := asset.CheckStateInvariants(&st, tree.Store)
			acc.WithPrefix("asset: ").AddAll(msgs)
			assetSummaries[key] = summary

		default:
			return xerrors.Errorf("unexpected actor code CID %v for address %v", actor.Code, key)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	//
	// Perform cross-actor checks from state summaries here.
	//

	CheckPositionsAgainstTokens(acc, vestingSummaries, nftSummaries)
	CheckAssetHolders(acc, assetSummaries, tree)
	CheckCodesInManifest(acc, builtins, codes)

	return acc, nil
}

// Every vesting actor must be paired with a token actor that points back to it,
// and every minted token must carry exactly one position.
func CheckPositionsAgainstTokens(acc *builtin.MessageAccumulator, vestingSummaries map[addr.Address]vestingSummary, nftSummaries map[addr.Address]nftSummary) {
	for vestingAddr, vs := range vestingSummaries { // nolint:nomaprange
		ns, ok := nftSummaries[vs.tokenActor]
		acc.Require(ok, "vesting %v refers to missing token actor %v", vestingAddr, vs.tokenActor)
		if !ok {
			continue
		}
		acc.Require(ns.vestingActor == vestingAddr, "token actor %v refers to vesting %v, not %v", vs.tokenActor, ns.vestingActor, vestingAddr)
		acc.Require(uint64(len(ns.Owners)) == vs.PositionCount,
			"token actor %v has %d tokens but vesting %v has %d positions", vs.tokenActor, len(ns.Owners), vestingAddr, vs.PositionCount)
	}
	for nftAddr, ns := range nftSummaries { // nolint:nomaprange
		_, ok := vestingSummaries[ns.vestingActor]
		acc.Require(ok, "token actor %v refers to missing vesting actor %v", nftAddr, ns.vestingActor)
	}
}

// Every asset holder must be an actor in the table.
func CheckAssetHolders(acc *builtin.MessageAccumulator, assetSummaries map[addr.Address]*asset.StateSummary, tree *Tree) {
	for assetAddr, summary := range assetSummaries { // nolint:nomaprange
		for holder := range summary.Balances { // nolint:nomaprange
			_, err := tree.GetActor(holder)
			acc.Require(err == nil, "asset %v holder %v is not an actor: %v", assetAddr, holder, err)
		}
	}
}

// Every actor must run code named by the manifest the system actor records.
func CheckCodesInManifest(acc *builtin.MessageAccumulator, m *manifest.Manifest, codes map[addr.Address]cid.Cid) {
	if m == nil {
		acc.Addf("no manifest of built-in actors")
		return
	}
	for a, code := range codes { // nolint:nomaprange
		_, ok := m.Name(code)
		acc.Require(ok, "actor %v code %v is not in the manifest", a, code)
	}
}
