package core

import (
	"sync"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/common"
)

// DomainManager is the process-wide singleton described in spec.md §4.1: a
// single mutex guarding three mappings — key->Domain (owning),
// raw_handle->key, and stream->PendingCollective.
type DomainManager struct {
	mu sync.Mutex

	domains   map[string]*Domain                   // DomainKey.String() -> Domain
	byHandle  map[common.RawComm]common.DomainKey   // raw comm -> key
	pending   map[common.RawStream]PendingCollective // stream -> pending

	disk *cache.DiskStore
}

// NewDomainManager returns an empty manager. disk may be nil to disable
// the supplemented on-disk ParamCache persistence.
func NewDomainManager(disk *cache.DiskStore) *DomainManager {
	return &DomainManager{
		domains:  make(map[string]*Domain),
		byHandle: make(map[common.RawComm]common.DomainKey),
		pending:  make(map[common.RawStream]PendingCollective),
		disk:     disk,
	}
}

// GetOrCreateByKey returns the existing Domain for key, or constructs one
// (new Controller per cfg.Algo, empty cache, no PCIe handles yet).
func (m *DomainManager) GetOrCreateByKey(key common.DomainKey, cfg *common.Config) *Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key.String()
	if d, ok := m.domains[k]; ok {
		return d
	}
	d := newDomain(key, cfg, m.disk)
	m.domains[k] = d
	return d
}

// RegisterRawComm ensures a Domain exists for key and records raw->key.
func (m *DomainManager) RegisterRawComm(raw common.RawComm, key common.DomainKey, cfg *common.Config) *Domain {
	d := m.GetOrCreateByKey(key, cfg)
	m.mu.Lock()
	m.byHandle[raw] = key
	m.mu.Unlock()
	return d
}

// GetDomainByRawComm returns the Domain registered for raw, or nil.
func (m *DomainManager) GetDomainByRawComm(raw common.RawComm) *Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byHandle[raw]
	if !ok {
		return nil
	}
	return m.domains[key.String()]
}

// UnregisterRawComm removes raw->key. The Domain itself stays registered —
// this is what lets a later CommInitRank for the same logical group reuse
// the prior learned state (spec.md §4.1 rationale).
func (m *DomainManager) UnregisterRawComm(raw common.RawComm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byHandle, raw)
}

// RegisterStreamPending is an unconditional overwrite of whatever pending
// record (if any) was previously registered for stream.
func (m *DomainManager) RegisterStreamPending(stream common.RawStream, p PendingCollective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[stream] = p
}

// TakeStreamPending returns the record for stream and removes it
// atomically; ok is false if none was registered.
func (m *DomainManager) TakeStreamPending(stream common.RawStream) (PendingCollective, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[stream]
	if ok {
		delete(m.pending, stream)
	}
	return p, ok
}
