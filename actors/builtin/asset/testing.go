package asset

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	Balances map[addr.Address]abi.TokenAmount
}

// Checks internal invariants of asset state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	summary := &StateSummary{Balances: make(map[addr.Address]abi.TokenAmount)}

	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		acc.Addf("error loading balances: %v", err)
		return summary, acc
	}
	total := big.Zero()
	err = balances.ForEach(func(holder addr.Address, balance abi.TokenAmount) error {
		acc.Require(balance.Sign() > 0, "holder %v has non-positive balance %v", holder, balance)
		acc.Require(holder.Protocol() == addr.ID, "holder %v is not an ID address", holder)
		summary.Balances[holder] = balance
		total = big.Add(total, balance)
		return nil
	})
	acc.RequireNoError(err, "error iterating balances")
	acc.Require(total.Equals(st.Supply), "balances total %v does not match supply %v", total, st.Supply)

	return summary, acc
}
