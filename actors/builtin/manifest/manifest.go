package manifest

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"
)

// Manifest names the code of every actor at one actors version.
type Manifest struct {
	Version uint64 // this is really u32, but cbor-gen can't deal with it
	Data    cid.Cid

	entries map[string]cid.Cid
	names   map[cid.Cid]string
}

type ManifestEntry struct {
	Name string
	Code cid.Cid
}

type ManifestData struct {
	Entries []ManifestEntry
}

// Store is the part of an IPLD store a manifest is loaded from.
type Store interface {
	Context() context.Context
	Get(ctx context.Context, c cid.Cid, out interface{}) error
}

var ErrDuplicateEntry = xerrors.New("duplicate manifest entry")

// CodeFor returns the code CID of the named actor at a version.
// The name is inlined into the CID with an identity hash, so codes are readable and need no store.
func CodeFor(version uint64, name string) (cid.Cid, error) {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	return builder.Sum([]byte(fmt.Sprintf("vestnft/%d/%s", version, name)))
}

// NewData lists the named actors with their codes at a version.
func NewData(version uint64, names ...string) (*ManifestData, error) {
	data := &ManifestData{Entries: make([]ManifestEntry, 0, len(names))}
	for _, name := range names {
		code, err := CodeFor(version, name)
		if err != nil {
			return nil, xerrors.Errorf("failed to make code for %s: %w", name, err)
		}
		data.Entries = append(data.Entries, ManifestEntry{Name: name, Code: code})
	}
	return data, nil
}

// Load reads the manifest data from the store and indexes it.
func (m *Manifest) Load(store Store) error {
	var data ManifestData
	if err := store.Get(store.Context(), m.Data, &data); err != nil {
		return xerrors.Errorf("failed to load manifest data %v: %w", m.Data, err)
	}
	return m.LoadData(&data)
}

// LoadData indexes manifest data already in memory.
func (m *Manifest) LoadData(data *ManifestData) error {
	entries := make(map[string]cid.Cid, len(data.Entries))
	names := make(map[cid.Cid]string, len(data.Entries))
	for _, e := range data.Entries {
		if _, ok := entries[e.Name]; ok {
			return xerrors.Errorf("name %s: %w", e.Name, ErrDuplicateEntry)
		}
		if _, ok := names[e.Code]; ok {
			return xerrors.Errorf("code %v: %w", e.Code, ErrDuplicateEntry)
		}
		entries[e.Name] = e.Code
		names[e.Code] = e.Name
	}
	m.entries = entries
	m.names = names
	return nil
}

func (m *Manifest) Get(name string) (cid.Cid, bool) {
	c, ok := m.entries[name]
	return c, ok
}

// Name returns the name registered for a code.
func (m *Manifest) Name(code cid.Cid) (string, bool) {
	name, ok := m.names[code]
	return name, ok
}
