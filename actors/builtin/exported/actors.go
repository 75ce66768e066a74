package exported

import (
	"github.com/vestnft/vesting-actors/actors/builtin/account"
	"github.com/vestnft/vesting-actors/actors/builtin/asset"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/system"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/runtime"
)

// BuiltinActors returns the code of every actor shipped in this repo.
func BuiltinActors() []runtime.VMActor {
	return []runtime.VMActor{
		system.Actor{},
		account.Actor{},
		asset.Actor{},
		nft.Actor{},
		vesting.Actor{},
	}
}
