package mainchain

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// blockKeyPrefix namespaces main-chain block rows inside their own Badger
// database.
const blockKeyPrefix = "mainchain:block:"

// BadgerPersister implements BlockPersister over BadgerDB, reusing the
// key-per-hash layout the node's other stores already use.
type BadgerPersister struct {
	db *badger.DB
}

// NewBadgerPersister opens (or creates) a Badger-backed persister at path.
// An empty path opens an in-memory instance, for tests.
func NewBadgerPersister(path string) (*BadgerPersister, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerPersister{db: db}, nil
}

func blockKey(h Digest) []byte {
	return []byte(fmt.Sprintf("%s%x", blockKeyPrefix, h[:]))
}

// SaveBlock writes b under its own hash key, wire-encoded.
func (p *BadgerPersister) SaveBlock(b *Block) error {
	var buf bytes.Buffer
	if err := EncodeBlock(&buf, b); err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(b.Hash), buf.Bytes())
	})
}

// LoadAll returns every block persisted so far, in no particular order;
// Store.rebuild reconstructs the DAG structure from PreviousHash links.
func (p *BadgerPersister) LoadAll() ([]*Block, error) {
	var out []*Block
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(blockKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				b, err := DecodeBlock(bytes.NewReader(val))
				if err != nil {
					return err
				}
				out = append(out, b)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying database handle.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}
