package cache

import (
	"sync"
	"testing"

	"github.com/adaptive-ccl/ampccl/common"
)

func key(n uint64) common.OpKey {
	return common.NewOpKey(common.AllReduce, n, common.Float32)
}

func TestParamCache_LookupMissReturnsDefault(t *testing.T) {
	c := NewParamCache()
	v := c.Lookup(key(1024))
	if v.Alpha != 0.5 || !v.UsePCIe {
		t.Fatalf("got %+v, want default 50/50-with-pcie", v)
	}
}

func TestParamCache_UpdateThenLookup(t *testing.T) {
	c := NewParamCache()
	k := key(2048)
	c.Update(k, ParamValue{Alpha: 0.3, UsePCIe: true, FastBW: 12.5, PCIeBW: 4.1})

	got := c.Lookup(k)
	want := ParamValue{Alpha: 0.3, UsePCIe: true, FastBW: 12.5, PCIeBW: 4.1}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParamCache_ClearAndSize(t *testing.T) {
	c := NewParamCache()
	c.Update(key(1), ParamValue{Alpha: 0.1})
	c.Update(key(2), ParamValue{Alpha: 0.2})
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear() = %d, want 0", c.Size())
	}
}

func TestParamCache_GetAllAndSetFrom(t *testing.T) {
	src := NewParamCache()
	src.Update(key(1), ParamValue{Alpha: 0.4, UsePCIe: true})
	src.Update(key(2), ParamValue{Alpha: 0.6, UsePCIe: false})

	snap := src.GetAll()
	if len(snap) != 2 {
		t.Fatalf("GetAll() len = %d, want 2", len(snap))
	}

	dst := NewParamCache()
	dst.Update(key(1), ParamValue{Alpha: 0.99}) // will be overwritten
	dst.SetFrom(snap)

	if dst.Size() != 2 {
		t.Fatalf("Size() after SetFrom = %d, want 2", dst.Size())
	}
	if got := dst.Lookup(key(1)); got.Alpha != 0.4 {
		t.Fatalf("Lookup(key(1)) = %+v, want Alpha=0.4 (overwritten by SetFrom)", got)
	}
	if got := dst.Lookup(key(2)); got.Alpha != 0.6 || got.UsePCIe {
		t.Fatalf("Lookup(key(2)) = %+v, want Alpha=0.6 UsePCIe=false", got)
	}
}

func TestParamCache_ConcurrentAccess(t *testing.T) {
	c := NewParamCache()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			k := key(n % 8)
			c.Update(k, ParamValue{Alpha: float64(n) / 64})
			c.Lookup(k)
		}(uint64(i))
	}
	wg.Wait()
	if c.Size() > 8 {
		t.Fatalf("Size() = %d, want <= 8", c.Size())
	}
}
