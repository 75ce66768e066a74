package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/account"
	"github.com/vestnft/vesting-actors/actors/builtin/asset"
	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/system"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/puppet"
	"github.com/vestnft/vesting-actors/actors/states"
)

func main() {
	// Common types
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/cbor_gen.go", "builtin",
		builtin.TokenIDParams{},
		builtin.IsApprovedOrOwnerParams{},
		builtin.AssetTransferParams{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/manifest/cbor_gen.go", "manifest",
		manifest.Manifest{},
		manifest.ManifestEntry{},
		manifest.ManifestData{},
	); err != nil {
		panic(err)
	}

	// Actors
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/system/cbor_gen.go", "system",
		// actor state
		system.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/account/cbor_gen.go", "account",
		// actor state
		account.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/asset/cbor_gen.go", "asset",
		// actor state
		asset.State{},
		// method params
		asset.ConstructorParams{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/nft/cbor_gen.go", "nft",
		// actor state
		nft.State{},
		// method params and returns
		nft.ConstructorParams{},
		nft.MintParams{},
		nft.MintReturn{},
		nft.TransferFromParams{},
		nft.ApproveParams{},
		nft.SetApprovalForAllParams{},
		nft.IsApprovedForAllParams{},
		// notifications
		nft.TransferEvent{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/vesting/cbor_gen.go", "vesting",
		// actor state
		vesting.State{},
		vesting.Position{},
		vesting.ClaimRecord{},
		// method params and returns
		vesting.ConstructorParams{},
		vesting.CreatePositionParams{},
		vesting.VestedPayoutAtTimeParams{},
		vesting.VestingPeriodReturn{},
		vesting.ClaimReturn{},
		// curve params
		vesting.CliffParams{},
		vesting.StepwiseParams{},
		vesting.ExponentialParams{},
		// notifications
		vesting.ClaimEvent{},
	); err != nil {
		panic(err)
	}

	// Tests
	if err := gen.WriteTupleEncodersToFile("./actors/puppet/cbor_gen.go", "puppet",
		puppet.State{},
		puppet.SendParams{},
		puppet.SendReturn{},
	); err != nil {
		panic(err)
	}

	// State tree
	if err := gen.WriteTupleEncodersToFile("./actors/states/cbor_gen.go", "states",
		states.Actor{},
	); err != nil {
		panic(err)
	}
}
