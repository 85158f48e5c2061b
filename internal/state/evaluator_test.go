package state

import (
	"testing"
	"time"

	"uptime/internal/probe"
	"uptime/internal/storage"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func okResult(latency float64) *probe.Result {
	return &probe.Result{Kind: "http", OK: true, LatencyMillis: latency}
}

func failResult(reason storage.ReasonCode) *probe.Result {
	return &probe.Result{Kind: "http", OK: false, Reason: reason, Message: "boom"}
}

func TestEvaluate_FirstCheck(t *testing.T) {
	tests := []struct {
		name         string
		result       *probe.Result
		wantStatus   storage.Status
		wantFailures int
	}{
		{"first success", okResult(42), storage.StatusUp, 0},
		{"first failure", failResult(storage.ReasonTimeout), storage.StatusPending, 1},
		{"paused", nil, storage.StatusPaused, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(nil, tt.result, Config{FailuresBeforeDown: 3, Interval: time.Minute, SummarySize: 10}, nil, baseTime)

			if out.State.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", out.State.Status, tt.wantStatus)
			}
			if out.State.Failures != tt.wantFailures {
				t.Errorf("Failures = %d, want %d", out.State.Failures, tt.wantFailures)
			}
			// 首次检查一律视为跃迁
			if !out.StatusChanged {
				t.Error("首次检查应产生状态跃迁")
			}
			if !out.State.ChangedAt.Equal(baseTime) {
				t.Errorf("ChangedAt = %v, want %v", out.State.ChangedAt, baseTime)
			}
		})
	}
}

// 迟滞：阈值 3，连续失败的状态轨迹应为 pending → pending → down，
// 任一成功立即回到 up 并清零计数
func TestEvaluate_HysteresisDownAndRecover(t *testing.T) {
	cfg := Config{FailuresBeforeDown: 3, Interval: time.Minute, SummarySize: 10}

	var prev *storage.ServiceState
	now := baseTime

	wantTrack := []struct {
		status      storage.Status
		failures    int
		changed     bool
	}{
		{storage.StatusPending, 1, true},
		{storage.StatusPending, 2, false},
		{storage.StatusDown, 3, true},
		{storage.StatusDown, 4, false},
	}

	for i, want := range wantTrack {
		out := Evaluate(prev, failResult(storage.ReasonTimeout), cfg, nil, now)
		if out.State.Status != want.status {
			t.Fatalf("第 %d 次失败: Status = %s, want %s", i+1, out.State.Status, want.status)
		}
		if out.State.Failures != want.failures {
			t.Fatalf("第 %d 次失败: Failures = %d, want %d", i+1, out.State.Failures, want.failures)
		}
		if out.StatusChanged != want.changed {
			t.Fatalf("第 %d 次失败: StatusChanged = %v, want %v", i+1, out.StatusChanged, want.changed)
		}
		prev = out.State
		now = now.Add(time.Minute)
	}

	// 恢复：单次成功即 up，计数归零
	out := Evaluate(prev, okResult(10), cfg, nil, now)
	if out.State.Status != storage.StatusUp {
		t.Fatalf("恢复后 Status = %s, want up", out.State.Status)
	}
	if out.State.Failures != 0 {
		t.Fatalf("恢复后 Failures = %d, want 0", out.State.Failures)
	}
	if !out.StatusChanged {
		t.Fatal("down → up 应产生状态跃迁")
	}
	if !out.State.ChangedAt.Equal(now) {
		t.Fatalf("跃迁时 ChangedAt 应更新为本次时间")
	}
}

// 状态未变时 changedAt 必须保持不动
func TestEvaluate_ChangedAtStableWithoutTransition(t *testing.T) {
	cfg := Config{FailuresBeforeDown: 3, Interval: time.Minute, SummarySize: 10}

	out := Evaluate(nil, okResult(10), cfg, nil, baseTime)
	first := out.State.ChangedAt

	now := baseTime
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		out = Evaluate(out.State, okResult(10), cfg, nil, now)
		if out.State.Status != storage.StatusUp {
			t.Fatalf("Status = %s, want up", out.State.Status)
		}
		if !out.State.ChangedAt.Equal(first) {
			t.Fatalf("连续 up 时 ChangedAt 不应变化: got %v, want %v", out.State.ChangedAt, first)
		}
		if out.StatusChanged {
			t.Fatal("连续 up 不应产生跃迁")
		}
	}
}

// 暂停周期：失败计数保持，不归零也不累加
func TestEvaluate_PausedCarriesFailures(t *testing.T) {
	cfg := Config{FailuresBeforeDown: 3, Interval: time.Minute, SummarySize: 10}

	out := Evaluate(nil, failResult(storage.ReasonTimeout), cfg, nil, baseTime)
	out = Evaluate(out.State, failResult(storage.ReasonTimeout), cfg, nil, baseTime.Add(time.Minute))
	if out.State.Failures != 2 {
		t.Fatalf("Failures = %d, want 2", out.State.Failures)
	}

	paused := Evaluate(out.State, nil, cfg, nil, baseTime.Add(2*time.Minute))
	if paused.State.Status != storage.StatusPaused {
		t.Fatalf("Status = %s, want paused", paused.State.Status)
	}
	if paused.State.Failures != 2 {
		t.Fatalf("暂停周期 Failures = %d, want 2（保持不变）", paused.State.Failures)
	}
	if paused.State.Current != nil {
		t.Fatal("暂停周期 Current 应为空")
	}
}

func TestAlignNextCheck(t *testing.T) {
	interval := time.Minute

	tests := []struct {
		name string
		prev *storage.ServiceState
		now  time.Time
		want time.Time
	}{
		{
			name: "first check starts from now",
			prev: nil,
			now:  baseTime,
			want: baseTime.Add(interval),
		},
		{
			name: "on time advances one slot",
			prev: &storage.ServiceState{NextCheckAt: baseTime},
			now:  baseTime,
			want: baseTime.Add(interval),
		},
		{
			name: "late within one interval stays aligned",
			prev: &storage.ServiceState{NextCheckAt: baseTime},
			now:  baseTime.Add(20 * time.Second),
			want: baseTime.Add(interval),
		},
		{
			name: "late past several slots skips to future slot",
			prev: &storage.ServiceState{NextCheckAt: baseTime},
			now:  baseTime.Add(3*time.Minute + 10*time.Second),
			want: baseTime.Add(4 * time.Minute),
		},
		{
			name: "exactly on a later slot advances past it",
			prev: &storage.ServiceState{NextCheckAt: baseTime},
			now:  baseTime.Add(2 * time.Minute),
			want: baseTime.Add(3 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alignNextCheck(tt.prev, interval, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("alignNextCheck() = %v, want %v", got, tt.want)
			}
			// 结果必须严格在 now 之后
			if !got.After(tt.now) {
				t.Errorf("nextCheckAt %v 不在 now %v 之后", got, tt.now)
			}
		})
	}
}

func TestUptimePercent(t *testing.T) {
	now := baseTime
	from := now.Add(-24 * time.Hour)

	t.Run("empty window returns zero", func(t *testing.T) {
		if got := UptimePercent(nil, from, now); got != 0 {
			t.Errorf("UptimePercent(empty) = %v, want 0", got)
		}
	})

	t.Run("half up half down", func(t *testing.T) {
		points := []storage.HistoryPoint{
			{CreatedAt: now.Add(-2 * time.Hour), Status: storage.StatusUp},
			{CreatedAt: now.Add(-1 * time.Hour), Status: storage.StatusDown},
		}
		got := UptimePercent(points, from, now)
		if got < 49.9 || got > 50.1 {
			t.Errorf("UptimePercent = %v, want ~50", got)
		}
	})

	t.Run("paused excluded from denominator", func(t *testing.T) {
		points := []storage.HistoryPoint{
			{CreatedAt: now.Add(-3 * time.Hour), Status: storage.StatusUp},
			{CreatedAt: now.Add(-2 * time.Hour), Status: storage.StatusPaused},
			{CreatedAt: now.Add(-1 * time.Hour), Status: storage.StatusUp},
		}
		got := UptimePercent(points, from, now)
		if got < 99.9 || got > 100 {
			t.Errorf("UptimePercent = %v, want 100（暂停时段不计入）", got)
		}
	})

	t.Run("segment clipped at window start", func(t *testing.T) {
		points := []storage.HistoryPoint{
			// 起点在窗口之前，只有窗口内的部分计入
			{CreatedAt: now.Add(-48 * time.Hour), Status: storage.StatusDown},
			{CreatedAt: now.Add(-12 * time.Hour), Status: storage.StatusUp},
		}
		got := UptimePercent(points, from, now)
		if got < 49.9 || got > 50.1 {
			t.Errorf("UptimePercent = %v, want ~50", got)
		}
	})

	t.Run("result bounded", func(t *testing.T) {
		points := []storage.HistoryPoint{
			{CreatedAt: now.Add(-time.Hour), Status: storage.StatusUp},
		}
		got := UptimePercent(points, from, now)
		if got < 0 || got > 100 {
			t.Errorf("UptimePercent = %v, 越界", got)
		}
	})
}

func TestMeanLatency(t *testing.T) {
	now := baseTime
	from := now.Add(-24 * time.Hour)

	points := []storage.HistoryPoint{
		{CreatedAt: now.Add(-3 * time.Hour), OK: true, LatencyMillis: 100},
		{CreatedAt: now.Add(-2 * time.Hour), OK: false, LatencyMillis: 9999}, // 失败不计入
		{CreatedAt: now.Add(-1 * time.Hour), OK: true, LatencyMillis: 200},
		{CreatedAt: now.Add(-30 * time.Hour), OK: true, LatencyMillis: 5000}, // 窗口外
	}

	got := MeanLatency(points, from)
	if got != 150 {
		t.Errorf("MeanLatency = %v, want 150", got)
	}

	if got := MeanLatency(nil, from); got != 0 {
		t.Errorf("MeanLatency(empty) = %v, want 0", got)
	}
}

func TestMiniHistory(t *testing.T) {
	points := make([]storage.HistoryPoint, 0, 15)
	for i := 0; i < 15; i++ {
		points = append(points, storage.HistoryPoint{
			CreatedAt:     baseTime.Add(time.Duration(i) * time.Minute),
			Status:        storage.StatusUp,
			OK:            true,
			LatencyMillis: float64(i),
		})
	}

	t.Run("keeps last N oldest first", func(t *testing.T) {
		entries := MiniHistory(points, 10)
		if len(entries) != 10 {
			t.Fatalf("len = %d, want 10", len(entries))
		}
		// 应为最近 10 条，时间升序
		if !entries[0].Timestamp.Equal(points[5].CreatedAt) {
			t.Errorf("首条时间 = %v, want %v", entries[0].Timestamp, points[5].CreatedAt)
		}
		for i := 1; i < len(entries); i++ {
			if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
				t.Fatal("摘要未按时间升序")
			}
		}
	})

	t.Run("fewer points than window", func(t *testing.T) {
		entries := MiniHistory(points[:3], 10)
		if len(entries) != 3 {
			t.Fatalf("len = %d, want 3", len(entries))
		}
	})

	t.Run("failed check has no latency", func(t *testing.T) {
		entries := MiniHistory([]storage.HistoryPoint{
			{CreatedAt: baseTime, Status: storage.StatusDown, OK: false, LatencyMillis: 123},
		}, 10)
		if entries[0].LatencyMillis != 0 {
			t.Errorf("失败检查不应携带延迟, got %v", entries[0].LatencyMillis)
		}
	})
}

// 历史意义变化的口径：状态、探测类型或失败原因任一不同
func TestEvaluate_HistorySignificant(t *testing.T) {
	cfg := Config{FailuresBeforeDown: 3, Interval: time.Minute, SummarySize: 10}

	out := Evaluate(nil, okResult(10), cfg, nil, baseTime)
	if !out.HistorySignificant {
		t.Fatal("首次检查应视为有历史意义")
	}

	// 同状态同原因：无历史意义
	out2 := Evaluate(out.State, okResult(11), cfg, nil, baseTime.Add(time.Minute))
	if out2.HistorySignificant {
		t.Fatal("重复 up 不应有历史意义")
	}

	// 同状态（pending 需两次失败才到 down），原因变化：有历史意义
	f1 := Evaluate(out2.State, failResult(storage.ReasonTimeout), cfg, nil, baseTime.Add(2*time.Minute))
	f2 := Evaluate(f1.State, failResult(storage.ReasonInvalidStatus), cfg, nil, baseTime.Add(3*time.Minute))
	if f1.State.Status != f2.State.Status {
		t.Fatalf("前置条件不成立：两次应同为 pending")
	}
	if !f2.HistorySignificant {
		t.Fatal("失败原因变化应有历史意义")
	}
}
