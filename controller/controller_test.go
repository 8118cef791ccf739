package controller_test

import (
	"path/filepath"
	"testing"

	"github.com/adaptive-ccl/ampccl/cache"
	"github.com/adaptive-ccl/ampccl/common"
	"github.com/adaptive-ccl/ampccl/controller"
	"github.com/adaptive-ccl/ampccl/telemetry"
)

func TestController_SuggestAlphaUsesCacheDefault(t *testing.T) {
	c := controller.NewController(controller.NewStaticPolicy(0.5), nil)
	params := cache.NewParamCache()
	key := common.NewOpKey(common.AllReduce, 4096, common.Float32)

	if got := c.SuggestAlpha(key, params); got != 0.5 {
		t.Fatalf("SuggestAlpha() = %v, want 0.5", got)
	}
}

func TestController_UpdateWritesBackToCache(t *testing.T) {
	c := controller.NewController(controller.NewAIMDPolicy(), nil)
	params := cache.NewParamCache()
	cfg := &common.Config{PCIeEnabled: true}
	key := common.NewOpKey(common.AllGather, 8192, common.Float32)

	stat := telemetry.ExecStat{
		FastSuccess: true, PCIeSuccess: true,
		FastTime: 1, FastBytes: 1 << 20,
		PCIeTime: 1, PCIeBytes: 1 << 20,
	}
	c.Update(key, stat, params, cfg)

	got := params.Lookup(key)
	if !got.UsePCIe {
		t.Fatalf("Lookup() = %+v, want UsePCIe=true (pcie enabled, succeeded, positive bandwidth)", got)
	}
	if got.FastBW <= 0 || got.PCIeBW <= 0 {
		t.Fatalf("Lookup() = %+v, want positive bandwidth estimates", got)
	}
}

func TestController_UpdateDisablesPCIeOnFailure(t *testing.T) {
	c := controller.NewController(controller.NewStaticPolicy(0.5), nil)
	params := cache.NewParamCache()
	cfg := &common.Config{PCIeEnabled: true}
	key := common.NewOpKey(common.Broadcast, 1024, common.Float32)

	stat := telemetry.ExecStat{FastSuccess: true, PCIeSuccess: false, FastTime: 1, FastBytes: 1 << 20}
	c.Update(key, stat, params, cfg)

	if got := params.Lookup(key); got.UsePCIe {
		t.Fatalf("Lookup() = %+v, want UsePCIe=false after a failed pcie launch", got)
	}
}

func TestController_UpdateRespectsPCIeDisabledGlobally(t *testing.T) {
	c := controller.NewController(controller.NewStaticPolicy(0.5), nil)
	params := cache.NewParamCache()
	cfg := &common.Config{PCIeEnabled: false}
	key := common.NewOpKey(common.ReduceScatter, 1024, common.Float32)

	stat := telemetry.ExecStat{
		FastSuccess: true, PCIeSuccess: true,
		FastTime: 1, FastBytes: 1 << 20,
		PCIeTime: 1, PCIeBytes: 1 << 20,
	}
	c.Update(key, stat, params, cfg)

	if got := params.Lookup(key); got.UsePCIe {
		t.Fatalf("Lookup() = %+v, want UsePCIe=false when PCIe disabled globally", got)
	}
}

func TestController_PersistsThroughDiskStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.db")
	disk, err := cache.OpenDiskStore(path)
	if err != nil {
		t.Fatalf("OpenDiskStore() error = %v", err)
	}
	defer disk.Close()

	c := controller.NewController(controller.NewStaticPolicy(0.5), disk)
	params := cache.NewParamCache()
	cfg := &common.Config{PCIeEnabled: true}
	key := common.NewOpKey(common.AllReduce, 2048, common.Float32)

	stat := telemetry.ExecStat{
		FastSuccess: true, PCIeSuccess: true,
		FastTime: 1, FastBytes: 1 << 20,
		PCIeTime: 1, PCIeBytes: 1 << 20,
	}
	c.Update(key, stat, params, cfg)

	got, ok := disk.Load(key)
	if !ok {
		t.Fatalf("disk.Load() ok = false, want the update to have persisted")
	}
	if got != params.Lookup(key) {
		t.Fatalf("disk.Load() = %+v, want it to match the in-memory cache %+v", got, params.Lookup(key))
	}
}

func TestWarmStart_LoadsDiskEntriesIntoCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.db")
	disk, err := cache.OpenDiskStore(path)
	if err != nil {
		t.Fatalf("OpenDiskStore() error = %v", err)
	}
	defer disk.Close()

	key := common.NewOpKey(common.AllReduce, 2048, common.Float32)
	if err := disk.Save(key, cache.ParamValue{Alpha: 0.73, UsePCIe: true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	params := cache.NewParamCache()
	controller.WarmStart(params, disk)

	if got := params.Lookup(key); got.Alpha != 0.73 {
		t.Fatalf("Lookup() = %+v, want Alpha=0.73 from warm start", got)
	}
}

func TestWarmStart_NilDiskIsNoOp(t *testing.T) {
	params := cache.NewParamCache()
	controller.WarmStart(params, nil)
	if params.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", params.Size())
	}
}
