package agent

import (
	"context"
	"fmt"
	"math/rand"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/pkg/errors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/states"
	"github.com/vestnft/vesting-actors/actors/util/adt"
	vm "github.com/vestnft/vesting-actors/support/vm"
)

// Sim drives a token and vesting deployment with a population of holder agents, one epoch per tick.
type Sim struct {
	Config     SimConfig
	Deployment *vm.Deployment
	Holders    []*HolderAgent
	Assets     []addr.Address
	v          *vm.VM
	rnd        *rand.Rand
	stats      map[MethodKey]*CallStats
}

type VMState interface {
	GetEpoch() abi.ChainEpoch
	GetState(a addr.Address, out cbor.Unmarshaler) error
	Store() adt.Store
}

type SimConfig struct {
	HolderCount      int
	Seed             int64
	AllowEmptyClaims bool
	Holder           HolderAgentConfig
}

type ReturnHandler func(v VMState, msg Message, ret cbor.Marshaler) error

type Message struct {
	From   addr.Address
	To     addr.Address
	Method abi.MethodNum
	Params interface{}
	// Failures with these exit codes are counted but do not stop the simulation.
	Tolerated     []exitcode.ExitCode
	ReturnHandler ReturnHandler
}

type MethodKey struct {
	To     addr.Address
	Method abi.MethodNum
}

type CallStats struct {
	Calls    uint64
	Failures map[exitcode.ExitCode]uint64
}

func NewSim(ctx context.Context, store adt.Store, config SimConfig) (*Sim, error) {
	v, err := vm.NewVM(ctx, vm.BuiltinLookup(), store)
	if err != nil {
		return nil, err
	}
	minterKey, err := vm.KeyAddress("minter")
	if err != nil {
		return nil, err
	}
	d, err := v.Deploy(vm.DeployConfig{MinterKey: minterKey, AllowEmptyClaims: config.AllowEmptyClaims})
	if err != nil {
		return nil, err
	}

	s := &Sim{
		Config:     config,
		Deployment: d,
		v:          v,
		rnd:        rand.New(rand.NewSource(config.Seed)),
		stats:      make(map[MethodKey]*CallStats),
	}
	for i := 0; i < config.HolderCount; i++ {
		a, err := v.CreateNamedAccount(fmt.Sprintf("holder-%d", i))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create holder %d", i)
		}
		s.Holders = append(s.Holders, NewHolderAgent(a, d.NFT, d.Vesting, s.rnd.Int63(), config.Holder, s.pickRecipient))
	}
	return s, nil
}

// Creates an asset whose whole supply is held by the vesting actor, ready to fund payouts.
func (s *Sim) AddAsset(supply abi.TokenAmount) (addr.Address, error) {
	a, err := s.v.CreateAsset(s.Deployment.Vesting, supply)
	if err != nil {
		return addr.Undef, err
	}
	s.Assets = append(s.Assets, a)
	return a, nil
}

// Mints a token carrying a position to the holder at an index.
func (s *Sim) Mint(holder int, terms vesting.Position) (uint64, error) {
	if holder < 0 || holder >= len(s.Holders) {
		return 0, errors.Errorf("no holder %d among %d", holder, len(s.Holders))
	}
	h := s.Holders[holder]
	ret := s.v.ApplyMessage(s.Deployment.Minter, s.Deployment.NFT, builtin.MethodsNFT.Mint, &nft.MintParams{To: h.Address, Terms: terms})
	if ret.Code != exitcode.Ok {
		return 0, errors.Errorf("exitcode %d: mint to holder %d failed: %v", ret.Code, holder, &terms)
	}
	mintRet, ok := ret.Ret.(*nft.MintReturn)
	if !ok {
		return 0, errors.Errorf("mint return has wrong type: %v", ret.Ret)
	}
	h.AddToken(mintRet.ID)
	return mintRet.ID, nil
}

// Runs one epoch: collects and applies every holder's messages in random order, then advances the epoch.
func (s *Sim) Tick() error {
	var blockMessages []Message
	for _, holder := range s.Holders {
		msgs, err := holder.Tick(s.v)
		if err != nil {
			return err
		}
		blockMessages = append(blockMessages, msgs...)
	}

	// shuffle messages
	s.rnd.Shuffle(len(blockMessages), func(i, j int) {
		blockMessages[i], blockMessages[j] = blockMessages[j], blockMessages[i]
	})

	for _, msg := range blockMessages {
		ret := s.v.ApplyMessage(msg.From, msg.To, msg.Method, msg.Params)
		s.record(msg, ret.Code)

		if ret.Code != exitcode.Ok {
			if tolerated(msg, ret.Code) {
				continue
			}
			return errors.Errorf("exitcode %d: message failed at epoch %d: %v -> %v method %d",
				ret.Code, s.v.GetEpoch(), msg.From, msg.To, msg.Method)
		}
		if msg.ReturnHandler != nil {
			if err := msg.ReturnHandler(s.v, msg, ret.Ret); err != nil {
				return err
			}
		}
	}

	s.v.SetEpoch(s.v.GetEpoch() + 1)
	return nil
}

// Checks the invariants of every actor in the simulation.
func (s *Sim) CheckInvariants() (*builtin.MessageAccumulator, error) {
	tree, err := s.v.StateTree()
	if err != nil {
		return nil, err
	}
	return states.CheckStateInvariants(tree, s.v.GetEpoch(), vesting.DefaultCurves())
}

func (s *Sim) GetCallStats() map[MethodKey]*CallStats {
	return s.stats
}

func (s *Sim) GetVM() *vm.VM {
	return s.v
}

func (s *Sim) record(msg Message, code exitcode.ExitCode) {
	key := MethodKey{To: msg.To, Method: msg.Method}
	stats, ok := s.stats[key]
	if !ok {
		stats = &CallStats{Failures: make(map[exitcode.ExitCode]uint64)}
		s.stats[key] = stats
	}
	stats.Calls++
	if code != exitcode.Ok {
		stats.Failures[code]++
	}
}

func (s *Sim) pickRecipient(from *HolderAgent) *HolderAgent {
	if len(s.Holders) < 2 {
		return nil
	}
	for {
		h := s.Holders[s.rnd.Intn(len(s.Holders))]
		if h != from {
			return h
		}
	}
}

func tolerated(msg Message, code exitcode.ExitCode) bool {
	for _, c := range msg.Tolerated {
		if c == code {
			return true
		}
	}
	return false
}
