package nft

import (
	addr "github.com/filecoin-project/go-address"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	Owners    map[uint64]addr.Address
	Operators int
}

// Checks internal invariants of token state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	summary := &StateSummary{Owners: make(map[uint64]addr.Address)}

	owners, err := adt.AsMap(store, st.Owners, OwnersHamtBitwidth)
	if err != nil {
		acc.Addf("error loading owners: %v", err)
		return summary, acc
	}
	counts := make(map[addr.Address]int64)
	var owner addr.Address
	err = owners.ForEach(&owner, func(key string) error {
		id, err := adt.ParseUIntKey(key)
		if err != nil {
			return err
		}
		acc.Require(id < st.NextID, "token %d is not below next id %d", id, st.NextID)
		acc.Require(owner.Protocol() == addr.ID, "token %d owner %v is not an ID address", id, owner)
		summary.Owners[id] = owner
		counts[owner]++
		return nil
	})
	acc.RequireNoError(err, "error iterating owners")

	approvals, err := adt.AsMap(store, st.Approvals, ApprovalsHamtBitwidth)
	if err != nil {
		acc.Addf("error loading approvals: %v", err)
	} else {
		var approved addr.Address
		err = approvals.ForEach(&approved, func(key string) error {
			id, err := adt.ParseUIntKey(key)
			if err != nil {
				return err
			}
			tokenOwner, found := summary.Owners[id]
			acc.Require(found, "approval for missing token %d", id)
			acc.Require(approved != tokenOwner, "token %d approves its own owner", id)
			return nil
		})
		acc.RequireNoError(err, "error iterating approvals")
	}

	operators, err := adt.AsSet(store, st.Operators, OperatorsHamtBitwidth)
	if err != nil {
		acc.Addf("error loading operators: %v", err)
	} else {
		keys, err := operators.CollectKeys()
		acc.RequireNoError(err, "error iterating operators")
		for _, k := range keys {
			o, op, err := parseOperatorKey(k)
			acc.RequireNoError(err, "bad operator key %x", k)
			acc.Require(err != nil || o != op, "%v is its own operator", o)
		}
		summary.Operators = len(keys)
	}

	balances, err := adt.AsMap(store, st.Balances, BalancesHamtBitwidth)
	if err != nil {
		acc.Addf("error loading balances: %v", err)
		return summary, acc
	}
	seen := 0
	var count cbg.CborInt
	err = balances.ForEach(&count, func(key string) error {
		holder, err := adt.ParseAddrKey(key)
		if err != nil {
			return err
		}
		acc.Require(int64(count) == counts[holder], "balance of %v is %d, owns %d tokens", holder, count, counts[holder])
		seen++
		return nil
	})
	acc.RequireNoError(err, "error iterating balances")
	acc.Require(seen == len(counts), "%d balance entries for %d owners", seen, len(counts))

	return summary, acc
}
