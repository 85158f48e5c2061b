package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return store
}

func sampleState(serviceID string, at time.Time) *ServiceState {
	return &ServiceState{
		ServiceID:   serviceID,
		NextCheckAt: at.Add(time.Minute),
		Failures:    0,
		Status:      StatusUp,
		ChangedAt:   at,
		Current: &CheckSnapshot{
			Kind:          "http",
			OK:            true,
			LatencyMillis: 42.5,
			At:            at,
		},
		Uptime1d:  99.5,
		Uptime30d: 98.7,
		Latency1d: 45.2,
		MiniHistory: []MiniHistoryEntry{
			{Timestamp: at, Status: StatusUp, LatencyMillis: 42.5},
		},
	}
}

func TestGetState_Missing(t *testing.T) {
	store := newTestStorage(t)

	st, err := store.GetState(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if st != nil {
		t.Errorf("不存在的服务应返回 nil, got %+v", st)
	}
}

func TestWriteCheckResult_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	state := sampleState("svc-1", now)
	entry := &HistoryEntry{
		ServiceID:     "svc-1",
		Kind:          "http",
		OK:            true,
		LatencyMillis: 42.5,
		Status:        StatusUp,
		CreatedAt:     now,
	}

	if err := store.WriteCheckResult(ctx, entry, state); err != nil {
		t.Fatalf("WriteCheckResult() error = %v", err)
	}

	got, err := store.GetState(ctx, "svc-1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if got == nil {
		t.Fatal("写入后应能读回状态")
	}
	if got.Status != StatusUp || got.Failures != 0 {
		t.Errorf("状态 = %s/%d, want up/0", got.Status, got.Failures)
	}
	if !got.NextCheckAt.Equal(state.NextCheckAt) {
		t.Errorf("NextCheckAt = %v, want %v", got.NextCheckAt, state.NextCheckAt)
	}
	if got.Current == nil || got.Current.LatencyMillis != 42.5 {
		t.Errorf("Current 快照未完整读回: %+v", got.Current)
	}
	if len(got.MiniHistory) != 1 || got.MiniHistory[0].Status != StatusUp {
		t.Errorf("MiniHistory 未完整读回: %+v", got.MiniHistory)
	}
	if got.Uptime1d != 99.5 || got.Uptime30d != 98.7 {
		t.Errorf("聚合值未完整读回: %v/%v", got.Uptime1d, got.Uptime30d)
	}

	// 历史记录同事务落库
	points, err := store.HistoryWindow(ctx, "svc-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HistoryWindow() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("历史点数 = %d, want 1", len(points))
	}
	if !points[0].OK || points[0].LatencyMillis != 42.5 {
		t.Errorf("历史点不符: %+v", points[0])
	}
}

func TestWriteCheckResult_NilEntry(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	// 暂停周期：只更新状态，不追加历史
	state := sampleState("svc-1", now)
	state.Status = StatusPaused
	state.Current = nil

	if err := store.WriteCheckResult(ctx, nil, state); err != nil {
		t.Fatalf("WriteCheckResult(nil entry) error = %v", err)
	}

	got, err := store.GetState(ctx, "svc-1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if got.Status != StatusPaused {
		t.Errorf("Status = %s, want paused", got.Status)
	}
	if got.Current != nil {
		t.Errorf("暂停状态的 Current 应为空, got %+v", got.Current)
	}

	points, err := store.HistoryWindow(ctx, "svc-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HistoryWindow() error = %v", err)
	}
	if len(points) != 0 {
		t.Errorf("暂停周期不应产生历史点, got %d", len(points))
	}
}

func TestWriteCheckResult_Upsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	if err := store.WriteCheckResult(ctx, nil, sampleState("svc-1", now)); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}

	updated := sampleState("svc-1", now.Add(time.Minute))
	updated.Status = StatusDown
	updated.Failures = 3
	if err := store.WriteCheckResult(ctx, nil, updated); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}

	states, err := store.ListStates(ctx)
	if err != nil {
		t.Fatalf("ListStates() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("upsert 后应只有一行, got %d", len(states))
	}
	if states["svc-1"].Status != StatusDown || states["svc-1"].Failures != 3 {
		t.Errorf("覆盖后的状态不符: %+v", states["svc-1"])
	}
}

func TestHistoryWindow_OrderAndFilter(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	// 乱序写入三条
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		entry := &HistoryEntry{
			ServiceID: "svc-1",
			Kind:      "http",
			OK:        true,
			Status:    StatusUp,
			CreatedAt: base.Add(offset),
		}
		if err := store.WriteCheckResult(ctx, entry, sampleState("svc-1", base.Add(offset))); err != nil {
			t.Fatalf("WriteCheckResult() error = %v", err)
		}
	}
	// 另一服务的记录不应混入
	other := &HistoryEntry{ServiceID: "svc-2", Kind: "tcp", OK: true, Status: StatusUp, CreatedAt: base}
	if err := store.WriteCheckResult(ctx, other, sampleState("svc-2", base)); err != nil {
		t.Fatalf("WriteCheckResult() error = %v", err)
	}

	points, err := store.HistoryWindow(ctx, "svc-1", base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("HistoryWindow() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("历史点数 = %d, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].CreatedAt.Before(points[i-1].CreatedAt) {
			t.Fatal("历史点未按时间升序")
		}
	}

	// since 过滤
	points, err = store.HistoryWindow(ctx, "svc-1", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("HistoryWindow() error = %v", err)
	}
	if len(points) != 2 {
		t.Errorf("since 过滤后点数 = %d, want 2", len(points))
	}
}

func TestPruneHistory(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	for i := 0; i < 10; i++ {
		entry := &HistoryEntry{
			ServiceID: "svc-1",
			Kind:      "http",
			OK:        true,
			Status:    StatusUp,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.WriteCheckResult(ctx, entry, sampleState("svc-1", base)); err != nil {
			t.Fatalf("WriteCheckResult() error = %v", err)
		}
	}

	deleted, err := store.PruneHistory(ctx, "svc-1", 4)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 6 {
		t.Errorf("删除行数 = %d, want 6", deleted)
	}

	points, err := store.HistoryWindow(ctx, "svc-1", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HistoryWindow() error = %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("裁剪后点数 = %d, want 4", len(points))
	}
	// 保留的必须是最新的 4 条
	if !points[0].CreatedAt.Equal(base.Add(6 * time.Minute)) {
		t.Errorf("最旧保留点 = %v, want %v（最旧优先删除）", points[0].CreatedAt, base.Add(6*time.Minute))
	}

	// 再次裁剪应无事发生
	deleted, err = store.PruneHistory(ctx, "svc-1", 4)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("幂等裁剪删除行数 = %d, want 0", deleted)
	}
}

func TestMeta(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// 不存在返回空串
	v, err := store.GetMeta(ctx, "maintenance_last_run")
	if err != nil {
		t.Fatalf("GetMeta() error = %v", err)
	}
	if v != "" {
		t.Errorf("缺失键应返回空串, got %q", v)
	}

	if err := store.SetMeta(ctx, "maintenance_last_run", "2025-06-01T12:00:00Z"); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}
	v, err = store.GetMeta(ctx, "maintenance_last_run")
	if err != nil {
		t.Fatalf("GetMeta() error = %v", err)
	}
	if v != "2025-06-01T12:00:00Z" {
		t.Errorf("GetMeta() = %q", v)
	}

	// 覆盖写
	if err := store.SetMeta(ctx, "maintenance_last_run", "2025-06-02T00:00:00Z"); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}
	v, _ = store.GetMeta(ctx, "maintenance_last_run")
	if v != "2025-06-02T00:00:00Z" {
		t.Errorf("覆盖后 GetMeta() = %q", v)
	}
}

func TestVacuumAndReconfigure(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.Reconfigure(ctx); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	if err := store.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum() error = %v", err)
	}
}
