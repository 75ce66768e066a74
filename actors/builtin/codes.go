package builtin

import (
	"github.com/ipfs/go-cid"

	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
)

// Version of the actors in this repo. It is part of every code CID.
const ActorsVersion = 1

// The built-in actor code IDs
var (
	SystemActorCodeID  cid.Cid
	AccountActorCodeID cid.Cid
	NFTActorCodeID     cid.Cid
	AssetActorCodeID   cid.Cid
	VestingActorCodeID cid.Cid
)

// Set of actor code types that can represent external signing parties.
var CallerTypesSignable []cid.Cid

// Names of the built-in actors, in manifest order.
var builtinActorNames = []string{"system", "account", "nft", "asset", "vesting"}

var builtinManifest = manifest.Manifest{Version: ActorsVersion}

func init() {
	data, err := ManifestData()
	if err != nil {
		panic(err)
	}
	if err := builtinManifest.LoadData(data); err != nil {
		panic(err)
	}
	for id, name := range map[*cid.Cid]string{
		&SystemActorCodeID:  "system",
		&AccountActorCodeID: "account",
		&NFTActorCodeID:     "nft",
		&AssetActorCodeID:   "asset",
		&VestingActorCodeID: "vesting",
	} {
		c, ok := builtinManifest.Get(name)
		if !ok {
			panic("no code for " + name)
		}
		*id = c
	}

	CallerTypesSignable = []cid.Cid{AccountActorCodeID}
}

// ManifestData lists every built-in actor with its code.
func ManifestData() (*manifest.ManifestData, error) {
	return manifest.NewData(ActorsVersion, builtinActorNames...)
}

// IsBuiltinActor returns true if the code belongs to an actor defined in this repo.
func IsBuiltinActor(code cid.Cid) bool {
	_, isBuiltin := builtinManifest.Name(code)
	return isBuiltin
}

// ActorNameByCode returns the (string) name of the actor given a cid code.
func ActorNameByCode(code cid.Cid) string {
	if !code.Defined() {
		return "<undefined>"
	}

	name, ok := builtinManifest.Name(code)
	if !ok {
		return "<unknown>"
	}
	return name
}

// Tests whether a code CID represents an actor that can be an external principal: i.e. an account.
func IsPrincipal(code cid.Cid) bool {
	for _, c := range CallerTypesSignable {
		if c.Equals(code) {
			return true
		}
	}
	return false
}
