package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

var MethodsAccount = struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}{MethodConstructor, 2}

var MethodsNFT = struct {
	Constructor       abi.MethodNum
	Mint              abi.MethodNum
	TransferFrom      abi.MethodNum
	Approve           abi.MethodNum
	SetApprovalForAll abi.MethodNum
	OwnerOf           abi.MethodNum
	IsApprovedForAll  abi.MethodNum
	IsApprovedOrOwner abi.MethodNum
	BalanceOf         abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8, 9}

var MethodsAsset = struct {
	Constructor abi.MethodNum
	Transfer    abi.MethodNum
	BalanceOf   abi.MethodNum
	TotalSupply abi.MethodNum
}{MethodConstructor, 2, 3, 4}

var MethodsVesting = struct {
	Constructor        abi.MethodNum
	CreatePosition     abi.MethodNum
	Claim              abi.MethodNum
	VestedPayout       abi.MethodNum
	VestedPayoutAtTime abi.MethodNum
	VestingPayout      abi.MethodNum
	ClaimablePayout    abi.MethodNum
	ClaimedPayout      abi.MethodNum
	VestingPeriod      abi.MethodNum
	PayoutAsset        abi.MethodNum
	TotalAllocation    abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
