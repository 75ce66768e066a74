package agent

import (
	"math/rand"
	"sort"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/pkg/errors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
)

type HolderAgentConfig struct {
	ClaimRate    float64 // average number of claims per epoch
	TransferRate float64 // average number of tokens given away per epoch
}

// HolderAgent owns vesting tokens, claims their payouts and gives some of them away to other holders.
type HolderAgent struct {
	Config  HolderAgentConfig
	Address addr.Address
	// Total paid out to this holder by its claims.
	Received abi.TokenAmount

	nft     addr.Address
	vesting addr.Address

	tokens map[uint64]struct{}

	claimEvents    *RateIterator
	transferEvents *RateIterator
	rnd            *rand.Rand

	// chooses the holder receiving a token, or nil if there is none
	pickRecipient func(from *HolderAgent) *HolderAgent
}

func NewHolderAgent(address, nftActor, vestingActor addr.Address, rndSeed int64, cfg HolderAgentConfig,
	pickRecipient func(from *HolderAgent) *HolderAgent) *HolderAgent {
	rnd := rand.New(rand.NewSource(rndSeed))
	return &HolderAgent{
		Config:         cfg,
		Address:        address,
		Received:       big.Zero(),
		nft:            nftActor,
		vesting:        vestingActor,
		tokens:         make(map[uint64]struct{}),
		claimEvents:    NewRateIterator(cfg.ClaimRate, rnd.Int63()),
		transferEvents: NewRateIterator(cfg.TransferRate, rnd.Int63()),
		rnd:            rnd,
		pickRecipient:  pickRecipient,
	}
}

// Returns the ids of the tokens held, in ascending order.
func (h *HolderAgent) Tokens() []uint64 {
	ids := make([]uint64, 0, len(h.tokens))
	for id := range h.tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *HolderAgent) AddToken(id uint64) {
	h.tokens[id] = struct{}{}
}

// Returns the messages the holder sends this epoch. A token is acted on at most once per epoch.
func (h *HolderAgent) Tick(_ VMState) ([]Message, error) {
	var msgs []Message
	busy := make(map[uint64]bool)
	pick := func() (uint64, bool) {
		ids := h.Tokens()
		if len(ids) == 0 {
			return 0, false
		}
		id := ids[h.rnd.Intn(len(ids))]
		if busy[id] {
			return 0, false
		}
		busy[id] = true
		return id, true
	}

	if err := h.claimEvents.Tick(func() error {
		if id, ok := pick(); ok {
			msgs = append(msgs, h.claim(id))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := h.transferEvents.Tick(func() error {
		to := h.pickRecipient(h)
		if to == nil {
			return nil
		}
		if id, ok := pick(); ok {
			msgs = append(msgs, h.transfer(id, to))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (h *HolderAgent) claim(id uint64) Message {
	return Message{
		From:      h.Address,
		To:        h.vesting,
		Method:    builtin.MethodsVesting.Claim,
		Params:    &vesting.ClaimParams{ID: id},
		Tolerated: []exitcode.ExitCode{vesting.ErrNothingToClaim},
		ReturnHandler: func(_ VMState, _ Message, ret cbor.Marshaler) error {
			claimRet, ok := ret.(*vesting.ClaimReturn)
			if !ok {
				return errors.Errorf("claim return has wrong type: %v", ret)
			}
			if claimRet.Recipient != h.Address {
				return errors.Errorf("claim of token %d paid %v, not its holder %v", id, claimRet.Recipient, h.Address)
			}
			h.Received = big.Add(h.Received, claimRet.Amount)
			return nil
		},
	}
}

func (h *HolderAgent) transfer(id uint64, to *HolderAgent) Message {
	return Message{
		From:   h.Address,
		To:     h.nft,
		Method: builtin.MethodsNFT.TransferFrom,
		Params: &nft.TransferFromParams{From: h.Address, To: to.Address, ID: id},
		ReturnHandler: func(_ VMState, _ Message, _ cbor.Marshaler) error {
			delete(h.tokens, id)
			to.AddToken(id)
			return nil
		},
	}
}
