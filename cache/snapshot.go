package cache

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/adaptive-ccl/ampccl/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotEntry is the wire shape of one Entry: OpKey's fields flattened so
// the JSON survives independent of any future change to OpKey's internal
// layout, and so it reads back the same across a Go-version or struct-tag
// change to common.OpKey itself.
type snapshotEntry struct {
	Op       int     `json:"op"`
	Bytes    uint64  `json:"bytes"`
	Datatype int     `json:"datatype"`
	Alpha    float64 `json:"alpha"`
	UsePCIe  bool     `json:"use_pcie"`
	FastBW   float64 `json:"fast_bw"`
	PCIeBW   float64 `json:"pcie_bw"`
}

func toSnapshot(entries []Entry) []snapshotEntry {
	out := make([]snapshotEntry, len(entries))
	for i, e := range entries {
		out[i] = snapshotEntry{
			Op:       int(e.Key.Op),
			Bytes:    e.Key.Bytes,
			Datatype: int(e.Key.Datatype),
			Alpha:    e.Value.Alpha,
			UsePCIe:  e.Value.UsePCIe,
			FastBW:   e.Value.FastBW,
			PCIeBW:   e.Value.PCIeBW,
		}
	}
	return out
}

func fromSnapshot(snap []snapshotEntry) []Entry {
	out := make([]Entry, len(snap))
	for i, s := range snap {
		out[i] = Entry{
			Key: common.OpKey{
				Op:       common.CollectiveType(s.Op),
				Bytes:    s.Bytes,
				Datatype: common.DataType(s.Datatype),
			},
			Value: ParamValue{
				Alpha:   s.Alpha,
				UsePCIe: s.UsePCIe,
				FastBW:  s.FastBW,
				PCIeBW:  s.PCIeBW,
			},
		}
	}
	return out
}

// MarshalSnapshot serializes entries to JSON; DiskStore uses it for disk
// persistence.
func MarshalSnapshot(entries []Entry) ([]byte, error) {
	b, err := json.Marshal(toSnapshot(entries))
	if err != nil {
		return nil, errors.Wrap(err, "marshal param cache snapshot")
	}
	return b, nil
}

// UnmarshalSnapshot parses a snapshot produced by MarshalSnapshot.
func UnmarshalSnapshot(b []byte) ([]Entry, error) {
	var snap []snapshotEntry
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal param cache snapshot")
	}
	return fromSnapshot(snap), nil
}
