package vm

import (
	"context"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/minio/blake2b-simd"
	"github.com/pkg/errors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/asset"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/support/ipld"
)

// Deployment is a token actor and vesting actor wired to each other, plus the account allowed to mint.
type Deployment struct {
	Minter  addr.Address
	NFT     addr.Address
	Vesting addr.Address
}

type DeployConfig struct {
	// Public key of the minting account.
	MinterKey        addr.Address
	AllowEmptyClaims bool
}

// Creates a VM over a fresh in-memory store with every builtin actor available.
func NewVMWithBuiltins(ctx context.Context) (*VM, error) {
	return NewVM(ctx, BuiltinLookup(), ipld.NewADTStore(ctx))
}

// Creates the minter account and constructs the token and vesting actors.
// The two actors refer to each other, so their addresses are reserved before either is constructed.
func (vm *VM) Deploy(cfg DeployConfig) (*Deployment, error) {
	minter, err := vm.CreateAccount(cfg.MinterKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minter")
	}
	nftAddr, err := vm.ReserveAddress()
	if err != nil {
		return nil, err
	}
	vestingAddr, err := vm.ReserveAddress()
	if err != nil {
		return nil, err
	}

	ret, err := vm.CreateActorAt(nftAddr, builtin.NFTActorCodeID, &nft.ConstructorParams{
		Minter:       minter,
		VestingActor: vestingAddr,
	})
	if err = constructed(ret, err, "nft"); err != nil {
		return nil, err
	}
	ret, err = vm.CreateActorAt(vestingAddr, builtin.VestingActorCodeID, &vesting.ConstructorParams{
		TokenActor:       nftAddr,
		AllowEmptyClaims: cfg.AllowEmptyClaims,
	})
	if err = constructed(ret, err, "vesting"); err != nil {
		return nil, err
	}

	log.Infow("deployed", "minter", minter, "nft", nftAddr, "vesting", vestingAddr)
	return &Deployment{Minter: minter, NFT: nftAddr, Vesting: vestingAddr}, nil
}

// Creates an asset with its whole supply held by holder.
func (vm *VM) CreateAsset(holder addr.Address, supply abi.TokenAmount) (addr.Address, error) {
	a, ret, err := vm.CreateActor(builtin.AssetActorCodeID, &asset.ConstructorParams{Holder: holder, Supply: supply})
	if err = constructed(ret, err, "asset"); err != nil {
		return addr.Undef, err
	}
	return a, nil
}

// Derives a deterministic BLS public key address from a label, for accounts created by name.
func KeyAddress(label string) (addr.Address, error) {
	h := blake2b.Sum512([]byte(label))
	return addr.NewBLSAddress(h[:addr.BlsPublicKeyBytes])
}

// Creates an account for the key derived from a label.
func (vm *VM) CreateNamedAccount(label string) (addr.Address, error) {
	key, err := KeyAddress(label)
	if err != nil {
		return addr.Undef, err
	}
	return vm.CreateAccount(key)
}

func constructed(ret MessageResult, err error, what string) error {
	if err != nil {
		return errors.Wrapf(err, "failed to create %s actor", what)
	}
	if ret.Code != exitcode.Ok {
		return errors.Errorf("failed to construct %s actor: exit %v", what, ret.Code)
	}
	return nil
}
