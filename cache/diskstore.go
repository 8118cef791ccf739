package cache

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"

	"github.com/adaptive-ccl/ampccl/cmn/nlog"
	"github.com/adaptive-ccl/ampccl/common"
)

// DiskStore persists learned ParamCache entries across process restarts —
// SPEC_FULL.md §4 supplemented feature 1. It has no effect on the hot
// dispatch path beyond the warm-start LoadAll() a Domain performs once at
// creation (when AMPCCL_PERSIST_PARAMS is on) and the synchronous Save() a
// Controller makes after each policy Update.
type DiskStore struct {
	db *buntdb.DB
}

// OpenDiskStore opens (creating if absent) the buntdb file at path.
func OpenDiskStore(path string) (*DiskStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open param disk store %s", path)
	}
	return &DiskStore{db: db}, nil
}

// Close releases the underlying database file.
func (d *DiskStore) Close() error {
	return d.db.Close()
}

// Save writes one entry's value under its OpKey's string form, lz4+jsoniter
// encoded. A failed write is logged and swallowed by the caller's usual
// fire-and-forget usage (see Controller), since disk persistence is a
// warm-start optimization, never a correctness requirement.
func (d *DiskStore) Save(key common.OpKey, value ParamValue) error {
	blob, err := compressEntry(Entry{Key: key, Value: value})
	if err != nil {
		return err
	}
	err = d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key.String(), string(blob), nil)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "persist param for %s", key.String())
	}
	return nil
}

// Load returns the persisted value for key, and ok=false if nothing has
// ever been saved for it (a plain cache miss, not an error).
func (d *DiskStore) Load(key common.OpKey) (value ParamValue, ok bool) {
	var blob string
	err := d.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key.String())
		if err != nil {
			return err
		}
		blob = v
		return nil
	})
	if err != nil {
		if err != buntdb.ErrNotFound {
			nlog.Warningf("param disk store lookup for %s: %v", key.String(), err)
		}
		return ParamValue{}, false
	}
	e, err := decompressEntry([]byte(blob))
	if err != nil {
		nlog.Warningf("param disk store decode for %s: %v", key.String(), err)
		return ParamValue{}, false
	}
	return e.Value, true
}

// LoadAll returns every persisted entry, for warm-starting a freshly
// constructed ParamCache in bulk instead of one Load per OpKey.
func (d *DiskStore) LoadAll() ([]Entry, error) {
	var out []Entry
	err := d.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(_, value string) bool {
			e, derr := decompressEntry([]byte(value))
			if derr != nil {
				nlog.Warningf("param disk store decode during scan: %v", derr)
				return true
			}
			out = append(out, e)
			return true
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan param disk store")
	}
	return out, nil
}

func compressEntry(e Entry) ([]byte, error) {
	raw, err := MarshalSnapshot([]Entry{e})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, errors.Wrap(err, "lz4 compress param entry")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 flush param entry")
	}
	return buf.Bytes(), nil
}

func decompressEntry(blob []byte) (Entry, error) {
	zr := lz4.NewReader(bytes.NewReader(blob))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return Entry{}, errors.Wrap(err, "lz4 decompress param entry")
	}
	entries, err := UnmarshalSnapshot(raw)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) != 1 {
		return Entry{}, errors.New("param disk store: expected exactly one entry per record")
	}
	return entries[0], nil
}
