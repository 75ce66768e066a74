package ipld

import (
	"context"
	"sync"

	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"github.com/pkg/errors"

	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// Creates a new, empty IPLD store in memory.
// This store is appropriate for most kinds of testing.
func NewADTStore(ctx context.Context) adt.Store {
	return adt.WrapStore(ctx, ipldcbor.NewCborStore(NewBlockStoreInMemory()))
}

// BlockStoreInMemory is an in-memory blockstore, safe for concurrent use.
type BlockStoreInMemory struct {
	mu   sync.RWMutex
	data map[cid.Cid]block.Block
}

var _ ipldcbor.IpldBlockstore = (*BlockStoreInMemory)(nil)

func NewBlockStoreInMemory() *BlockStoreInMemory {
	return &BlockStoreInMemory{data: make(map[cid.Cid]block.Block)}
}

func (mb *BlockStoreInMemory) Get(c cid.Cid) (block.Block, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	d, ok := mb.data[c]
	if ok {
		return d, nil
	}
	return nil, errors.Errorf("not found: %s", c)
}

func (mb *BlockStoreInMemory) Put(b block.Block) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.data[b.Cid()] = b
	return nil
}

// Number of blocks held.
func (mb *BlockStoreInMemory) Len() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.data)
}
