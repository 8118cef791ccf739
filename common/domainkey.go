package common

import (
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// DomainKey identifies a logical communicator independent of the vendor
// handle backing it: two ranks that independently call CommInitRank for the
// same job derive the same key from the unique-id blob they were both
// handed, so the registry can share one Domain across handle churn (comm
// destroy/recreate) and even across otherwise-unrelated vendor
// communicators that happen to describe the same group.
//
// DomainKey holds a slice, so it is not comparable with == and cannot key a
// map; callers compare keys with Equal, and callers that need a map key use
// DomainKey.String() or the topology hash directly.
type DomainKey struct {
	WorldSize    int32
	Ranks        []int32
	TopologyHash uint64
}

// Equal reports whether two keys describe the same domain. WorldSize and
// TopologyHash are compared first since they're cheap and discriminate the
// overwhelming majority of mismatches before the rank slice is walked.
func (k DomainKey) Equal(o DomainKey) bool {
	if k.WorldSize != o.WorldSize || k.TopologyHash != o.TopologyHash {
		return false
	}
	if len(k.Ranks) != len(o.Ranks) {
		return false
	}
	for i, r := range k.Ranks {
		if o.Ranks[i] != r {
			return false
		}
	}
	return true
}

// String renders a DomainKey as a stable, comparable string so it can be
// used directly as a Go map key (DomainManager keys its registry by this).
func (k DomainKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(k.WorldSize), 10))
	b.WriteByte(':')
	for i, r := range k.Ranks {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(r), 10))
	}
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(k.TopologyHash, 16))
	return b.String()
}

// TopologyHash derives the rolling byte hash the spec calls for: each byte
// of the vendor unique-id blob folds in as `hash = hash*131 + byte`, so two
// ranks that were handed the same unique-id bytes independently compute the
// same value without any coordination. Deliberately weak (per the original
// design notes, a collision here only ever costs a shared heuristic alpha,
// never correctness) — kept exactly as specified rather than upgraded.
func TopologyHash(uniqueID []byte) uint64 {
	var h uint64
	for _, b := range uniqueID {
		h = h*131 + uint64(b)
	}
	return h
}

// BuildDomainKey constructs the key for a communicator with the given world
// size and vendor unique-id bytes, with ranks assigned densely [0, nranks).
func BuildDomainKey(worldSize int32, uniqueID []byte) DomainKey {
	ranks := make([]int32, worldSize)
	for i := range ranks {
		ranks[i] = int32(i)
	}
	return DomainKey{WorldSize: worldSize, Ranks: ranks, TopologyHash: TopologyHash(uniqueID)}
}

// ShmHash is the stronger, collision-resistant hash used only to name the
// POSIX shared-memory segment (`/ampccl_<hex>`) backing a domain's
// cross-rank exchange — xxhash rather than the deliberately-weak rolling
// hash above, because a segment-name collision between two unrelated jobs
// is a correctness bug (two jobs would share shared memory), not a
// heuristic-sharing shrug.
func ShmHash(k DomainKey) uint64 {
	return xxhash.Checksum64([]byte(k.String()))
}

// ShmName returns the segment name for a DomainKey, matching the
// `/ampccl_<hex(hash)>` naming rule.
func ShmName(k DomainKey) string {
	return "/ampccl_" + strconv.FormatUint(ShmHash(k), 16)
}
