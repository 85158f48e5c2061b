package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // 纯Go实现的SQLite驱动

	"uptime/internal/logger"
)

// SQLiteStorage SQLite存储实现
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 创建SQLite存储
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	// 使用WAL模式和其他参数解决并发锁问题
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite建议单个写连接（WAL模式支持更好的并发）
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &SQLiteStorage{db: db}, nil
}

// Init 初始化数据库表
func (s *SQLiteStorage) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS service_state (
		service_id TEXT PRIMARY KEY,
		next_check_at INTEGER NOT NULL,
		failures INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		changed_at INTEGER NOT NULL,
		current_json TEXT NOT NULL DEFAULT '',
		uptime_1d REAL NOT NULL DEFAULT 0,
		uptime_30d REAL NOT NULL DEFAULT 0,
		latency_1d REAL NOT NULL DEFAULT 0,
		mini_history_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS check_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		service_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		ok INTEGER NOT NULL,
		latency_ms REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_history_service_ts
	ON check_history(service_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// GetState 读取单个服务状态
func (s *SQLiteStorage) GetState(ctx context.Context, serviceID string) (*ServiceState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT service_id, next_check_at, failures, status, changed_at,
		       current_json, uptime_1d, uptime_30d, latency_1d, mini_history_json
		FROM service_state WHERE service_id = ?`, serviceID)

	st, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取服务状态失败: %w", err)
	}
	return st, nil
}

// ListStates 读取所有服务状态
func (s *SQLiteStorage) ListStates(ctx context.Context) (map[string]*ServiceState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id, next_check_at, failures, status, changed_at,
		       current_json, uptime_1d, uptime_30d, latency_1d, mini_history_json
		FROM service_state`)
	if err != nil {
		return nil, fmt.Errorf("读取服务状态列表失败: %w", err)
	}
	defer rows.Close()

	states := make(map[string]*ServiceState)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描服务状态失败: %w", err)
		}
		states[st.ServiceID] = st
	}
	return states, rows.Err()
}

// WriteCheckResult 原子写入一次检查结果（历史插入 + 状态 upsert 同一事务）
func (s *SQLiteStorage) WriteCheckResult(ctx context.Context, entry *HistoryEntry, state *ServiceState) error {
	if state == nil {
		return fmt.Errorf("state 不能为空")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if entry != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO check_history (service_id, kind, ok, latency_ms, reason, message, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ServiceID, entry.Kind, boolToInt(entry.OK), entry.LatencyMillis,
			string(entry.Reason), entry.Message, string(entry.Status), entry.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("写入历史记录失败: %w", err)
		}
	}

	currentJSON, miniJSON, err := marshalStateBlobs(state)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO service_state
			(service_id, next_check_at, failures, status, changed_at,
			 current_json, uptime_1d, uptime_30d, latency_1d, mini_history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			next_check_at = excluded.next_check_at,
			failures = excluded.failures,
			status = excluded.status,
			changed_at = excluded.changed_at,
			current_json = excluded.current_json,
			uptime_1d = excluded.uptime_1d,
			uptime_30d = excluded.uptime_30d,
			latency_1d = excluded.latency_1d,
			mini_history_json = excluded.mini_history_json`,
		state.ServiceID, state.NextCheckAt.UnixMilli(), state.Failures, string(state.Status),
		state.ChangedAt.UnixMilli(), currentJSON, state.Uptime1d, state.Uptime30d,
		state.Latency1d, miniJSON,
	); err != nil {
		return fmt.Errorf("更新服务状态失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// HistoryWindow 读取指定服务 since 之后的历史点（时间升序）
func (s *SQLiteStorage) HistoryWindow(ctx context.Context, serviceID string, since time.Time) ([]HistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, status, ok, latency_ms, kind, reason
		FROM check_history
		WHERE service_id = ? AND created_at >= ?
		ORDER BY created_at ASC`,
		serviceID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("读取历史窗口失败: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var (
			createdAt int64
			status    string
			ok        int
			latency   float64
			kind      string
			reason    string
		)
		if err := rows.Scan(&createdAt, &status, &ok, &latency, &kind, &reason); err != nil {
			return nil, fmt.Errorf("扫描历史点失败: %w", err)
		}
		points = append(points, HistoryPoint{
			CreatedAt:     time.UnixMilli(createdAt),
			Status:        Status(status),
			OK:            ok != 0,
			LatencyMillis: latency,
			Kind:          kind,
			Reason:        ReasonCode(reason),
		})
	}
	return points, rows.Err()
}

// PruneHistory 按保留条数裁剪历史（最旧优先删除）
func (s *SQLiteStorage) PruneHistory(ctx context.Context, serviceID string, retain int) (int64, error) {
	if retain < 0 {
		retain = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM check_history
		WHERE service_id = ? AND id NOT IN (
			SELECT id FROM check_history
			WHERE service_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`, serviceID, serviceID, retain)
	if err != nil {
		return 0, fmt.Errorf("裁剪历史失败: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum 回收存储空间
func (s *SQLiteStorage) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("VACUUM 失败: %w", err)
	}
	return nil
}

// Reconfigure 一次性存储调优（WAL 已在 DSN 开启，这里补充统计信息与增量清理参数）
func (s *SQLiteStorage) Reconfigure(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA auto_vacuum=INCREMENTAL`,
		`ANALYZE`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("存储调优失败(%s): %w", stmt, err)
		}
	}
	logger.Info("storage", "SQLite 存储调优完成")
	return nil
}

// GetMeta 读取元数据
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取元数据失败: %w", err)
	}
	return value, nil
}

// SetMeta 写入元数据
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("写入元数据失败: %w", err)
	}
	return nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows 的扫描接口
type rowScanner interface {
	Scan(dest ...any) error
}

// scanState 从查询结果扫描服务状态
func scanState(row rowScanner) (*ServiceState, error) {
	var (
		st          ServiceState
		nextCheckAt int64
		changedAt   int64
		status      string
		currentJSON string
		miniJSON    string
	)
	if err := row.Scan(&st.ServiceID, &nextCheckAt, &st.Failures, &status, &changedAt,
		&currentJSON, &st.Uptime1d, &st.Uptime30d, &st.Latency1d, &miniJSON); err != nil {
		return nil, err
	}
	st.NextCheckAt = time.UnixMilli(nextCheckAt)
	st.ChangedAt = time.UnixMilli(changedAt)
	st.Status = Status(status)
	if err := unmarshalStateBlobs(&st, currentJSON, miniJSON); err != nil {
		return nil, err
	}
	return &st, nil
}

// marshalStateBlobs 序列化状态中的 JSON 字段
func marshalStateBlobs(state *ServiceState) (currentJSON, miniJSON string, err error) {
	if state.Current != nil {
		data, err := json.Marshal(state.Current)
		if err != nil {
			return "", "", fmt.Errorf("序列化最近结果失败: %w", err)
		}
		currentJSON = string(data)
	}
	mini := state.MiniHistory
	if mini == nil {
		mini = []MiniHistoryEntry{}
	}
	data, err := json.Marshal(mini)
	if err != nil {
		return "", "", fmt.Errorf("序列化历史摘要失败: %w", err)
	}
	return currentJSON, string(data), nil
}

// unmarshalStateBlobs 反序列化状态中的 JSON 字段
func unmarshalStateBlobs(st *ServiceState, currentJSON, miniJSON string) error {
	if currentJSON != "" {
		var snap CheckSnapshot
		if err := json.Unmarshal([]byte(currentJSON), &snap); err != nil {
			return fmt.Errorf("解析最近结果失败: %w", err)
		}
		st.Current = &snap
	}
	if miniJSON != "" {
		if err := json.Unmarshal([]byte(miniJSON), &st.MiniHistory); err != nil {
			return fmt.Errorf("解析历史摘要失败: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
