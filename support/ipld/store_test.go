package ipld_test

import (
	"context"
	"sync"
	"testing"

	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/support/ipld"
)

func TestADTStoreRoundTrip(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	in := cbg.CborInt(42)
	c, err := store.Put(store.Context(), &in)
	require.NoError(t, err)

	var out cbg.CborInt
	require.NoError(t, store.Get(store.Context(), c, &out))
	assert.Equal(t, in, out)
}

func TestBlockStoreConcurrentAccess(t *testing.T) {
	bs := ipld.NewBlockStoreInMemory()
	store := ipldcbor.NewCborStore(bs)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := cbg.CborInt(i)
			_, err := store.Put(context.Background(), &v)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, bs.Len())
}
