package collector

import (
	"context"
	"testing"

	"github.com/rogue-hunter/roguehunter/osadapter"
)

// fakeAdapter lets each test script a fixed set of PIDs and per-PID data
// that can change across successive Collect() calls by returning different
// values via the ticks slice, advanced on each ListAllPIDs call.
type fakeAdapter struct {
	ticks []fakeTick
	call  int
}

type fakeTick struct {
	pids    []uint32
	rusage  map[uint32]osadapter.RusageV4
	task    map[uint32]osadapter.TaskInfo
	bsd     map[uint32]osadapter.BsdInfo
	missing map[uint32]bool // pids to report as absent from GetRusage
}

func (f *fakeAdapter) currentTick() fakeTick {
	if f.call >= len(f.ticks) {
		return f.ticks[len(f.ticks)-1]
	}
	return f.ticks[f.call]
}

func (f *fakeAdapter) ListAllPIDs(ctx context.Context) ([]uint32, error) {
	t := f.currentTick()
	f.call++
	return t.pids, nil
}

func (f *fakeAdapter) GetRusage(ctx context.Context, pid uint32) (osadapter.RusageV4, bool) {
	t := f.ticks[f.call-1]
	if t.missing[pid] {
		return osadapter.RusageV4{}, false
	}
	ru, ok := t.rusage[pid]
	return ru, ok
}

func (f *fakeAdapter) GetTaskInfo(ctx context.Context, pid uint32) (osadapter.TaskInfo, bool) {
	t := f.ticks[f.call-1]
	ti, ok := t.task[pid]
	return ti, ok
}

func (f *fakeAdapter) GetBsdInfo(ctx context.Context, pid uint32) (osadapter.BsdInfo, bool) {
	t := f.ticks[f.call-1]
	bi, ok := t.bsd[pid]
	return bi, ok
}

func (f *fakeAdapter) GetProcessName(ctx context.Context, pid uint32) string { return "" }
func (f *fakeAdapter) GetTimebase() osadapter.Timebase                       { return osadapter.Timebase{Numer: 1, Denom: 1} }
func (f *fakeAdapter) GetGPUUsage(ctx context.Context) map[uint32]uint64     { return nil }
func (f *fakeAdapter) BootTime() int64                                      { return 0 }

func TestCollectFirstTickHasNoRates(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {UserCPUNs: 1000}},
			task:   map[uint32]osadapter.TaskInfo{100: {ThreadCount: 2}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {StatusCode: 2, Command: "foo"}},
		},
	}}
	s := NewSampler(a)
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(res.Records))
	}
	if res.Records[0].CPU != 0 {
		t.Errorf("first-tick CPU rate = %v, want 0 (no previous sample)", res.Records[0].CPU)
	}
}

func TestCollectSecondTickComputesPositiveRates(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {UserCPUNs: 1000, DiskBytesRead: 10}},
			task:   map[uint32]osadapter.TaskInfo{100: {ThreadCount: 2}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {StatusCode: 2, Command: "foo"}},
		},
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {UserCPUNs: 2_000_000_000, DiskBytesRead: 5000}},
			task:   map[uint32]osadapter.TaskInfo{100: {ThreadCount: 2}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {StatusCode: 2, Command: "foo"}},
		},
	}}
	s := NewSampler(a)
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatalf("first Collect() error = %v", err)
	}
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	if res.Records[0].DiskBytesRWRate <= 0 {
		t.Errorf("DiskBytesRWRate = %v, want > 0 after counter increase", res.Records[0].DiskBytesRWRate)
	}
}

func TestCollectSkipsPIDMissingFromAdapter(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:    []uint32{100, 200},
			rusage:  map[uint32]osadapter.RusageV4{100: {}},
			task:    map[uint32]osadapter.TaskInfo{100: {}},
			bsd:     map[uint32]osadapter.BsdInfo{100: {Command: "foo"}},
			missing: map[uint32]bool{200: true},
		},
	}}
	s := NewSampler(a)
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1 (pid 200 should be skipped)", len(res.Records))
	}
	if res.Records[0].PID != 100 {
		t.Errorf("surviving PID = %d, want 100", res.Records[0].PID)
	}
}

func TestCollectSkipsPIDZero(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{0, 100},
			rusage: map[uint32]osadapter.RusageV4{0: {}, 100: {}},
			task:   map[uint32]osadapter.TaskInfo{0: {}, 100: {}},
			bsd:    map[uint32]osadapter.BsdInfo{0: {}, 100: {Command: "foo"}},
		},
	}}
	s := NewSampler(a)
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].PID != 100 {
		t.Errorf("Records = %v, want only pid 100 (pid 0 must always be skipped)", res.Records)
	}
}

func TestCollectCountsZombieChildrenOnParent(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids: []uint32{1, 2},
			rusage: map[uint32]osadapter.RusageV4{1: {}, 2: {}},
			task:   map[uint32]osadapter.TaskInfo{1: {}, 2: {}},
			bsd: map[uint32]osadapter.BsdInfo{
				1: {Command: "parent", StatusCode: 2},
				2: {Command: "zombie-child", StatusCode: 5, ParentPID: 1},
			},
		},
	}}
	s := NewSampler(a)
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var parentRecord *int
	for i, r := range res.Records {
		if r.PID == 1 {
			v := i
			parentRecord = &v
		}
	}
	if parentRecord == nil {
		t.Fatal("parent record not found")
	}
	if res.Records[*parentRecord].ZombieChildren != 1 {
		t.Errorf("ZombieChildren = %d, want 1", res.Records[*parentRecord].ZombieChildren)
	}
}

func TestCollectIPCZeroWhenNoCycles(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {Instructions: 500, Cycles: 0}},
			task:   map[uint32]osadapter.TaskInfo{100: {}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {Command: "foo"}},
		},
	}}
	s := NewSampler(a)
	res, _ := s.Collect(context.Background())
	if res.Records[0].IPC != 0 {
		t.Errorf("IPC = %v, want 0 when Cycles is 0", res.Records[0].IPC)
	}
}

func TestCollectIPCComputedWhenCyclesPositive(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {Instructions: 500, Cycles: 1000}},
			task:   map[uint32]osadapter.TaskInfo{100: {}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {Command: "foo"}},
		},
	}}
	s := NewSampler(a)
	res, _ := s.Collect(context.Background())
	if res.Records[0].IPC != 0.5 {
		t.Errorf("IPC = %v, want 0.5", res.Records[0].IPC)
	}
}

func TestCollectPrunesPrevCacheForVanishedPIDs(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100, 200},
			rusage: map[uint32]osadapter.RusageV4{100: {}, 200: {}},
			task:   map[uint32]osadapter.TaskInfo{100: {}, 200: {}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {Command: "a"}, 200: {Command: "b"}},
		},
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {}},
			task:   map[uint32]osadapter.TaskInfo{100: {}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {Command: "a"}},
		},
	}}
	s := NewSampler(a)
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatalf("first Collect() error = %v", err)
	}
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	if _, ok := s.prev[200]; ok {
		t.Error("prev cache should drop pid 200 once it no longer appears in ListAllPIDs")
	}
	if _, ok := s.prev[100]; !ok {
		t.Error("prev cache should retain pid 100, which is still present")
	}
}

func TestCollectUsesProcessNameFallbackWhenCommandEmpty(t *testing.T) {
	a := &fakeAdapter{ticks: []fakeTick{
		{
			pids:   []uint32{100},
			rusage: map[uint32]osadapter.RusageV4{100: {}},
			task:   map[uint32]osadapter.TaskInfo{100: {}},
			bsd:    map[uint32]osadapter.BsdInfo{100: {Command: ""}},
		},
	}}
	s := NewSampler(a)
	res, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if res.Records[0].Command != "" {
		t.Errorf("Command = %q, want empty (fake adapter's GetProcessName returns empty)", res.Records[0].Command)
	}
}
