package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"uptime/internal/config"
	"uptime/internal/logger"
)

// PostgresStorage PostgreSQL 存储实现
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage 创建 PostgreSQL 存储
func NewPostgresStorage(cfg *config.PostgresConfig) (*PostgresStorage, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 PostgreSQL 连接配置失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	poolConfig.MaxConnLifetime = time.Hour
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			logger.Warn("storage", "解析 conn_max_lifetime 失败，使用默认值 1h", "error", err)
		} else {
			poolConfig.MaxConnLifetime = lifetime
		}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 PostgreSQL 连接池失败: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Init 初始化数据库表
func (s *PostgresStorage) Init() error {
	ctx := context.Background()
	schema := `
	CREATE TABLE IF NOT EXISTS service_state (
		service_id TEXT PRIMARY KEY,
		next_check_at BIGINT NOT NULL,
		failures INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		changed_at BIGINT NOT NULL,
		current_json TEXT NOT NULL DEFAULT '',
		uptime_1d DOUBLE PRECISION NOT NULL DEFAULT 0,
		uptime_30d DOUBLE PRECISION NOT NULL DEFAULT 0,
		latency_1d DOUBLE PRECISION NOT NULL DEFAULT 0,
		mini_history_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS check_history (
		id BIGSERIAL PRIMARY KEY,
		service_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		ok BOOLEAN NOT NULL,
		latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_history_service_ts
	ON check_history(service_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// GetState 读取单个服务状态
func (s *PostgresStorage) GetState(ctx context.Context, serviceID string) (*ServiceState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT service_id, next_check_at, failures, status, changed_at,
		       current_json, uptime_1d, uptime_30d, latency_1d, mini_history_json
		FROM service_state WHERE service_id = $1`, serviceID)

	st, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取服务状态失败: %w", err)
	}
	return st, nil
}

// ListStates 读取所有服务状态
func (s *PostgresStorage) ListStates(ctx context.Context) (map[string]*ServiceState, error) {
	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStorage) WriteCheckResult(ctx context.Context, entry *HistoryEntry, state *ServiceState) error {
	if state == nil {
		return fmt.Errorf("state 不能为空")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback(ctx)

	if entry != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO check_history (service_id, kind, ok, latency_ms, reason, message, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ServiceID, entry.Kind, entry.OK, entry.LatencyMillis,
			string(entry.Reason), entry.Message, string(entry.Status), entry.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("写入历史记录失败: %w", err)
		}
	}

	currentJSON, miniJSON, err := marshalStateBlobs(state)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO service_state
			(service_id, next_check_at, failures, status, changed_at,
			 current_json, uptime_1d, uptime_30d, latency_1d, mini_history_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (service_id) DO UPDATE SET
			next_check_at = EXCLUDED.next_check_at,
			failures = EXCLUDED.failures,
			status = EXCLUDED.status,
			changed_at = EXCLUDED.changed_at,
			current_json = EXCLUDED.current_json,
			uptime_1d = EXCLUDED.uptime_1d,
			uptime_30d = EXCLUDED.uptime_30d,
			latency_1d = EXCLUDED.latency_1d,
			mini_history_json = EXCLUDED.mini_history_json`,
		state.ServiceID, state.NextCheckAt.UnixMilli(), state.Failures, string(state.Status),
		state.ChangedAt.UnixMilli(), currentJSON, state.Uptime1d, state.Uptime30d,
		state.Latency1d, miniJSON,
	); err != nil {
		return fmt.Errorf("更新服务状态失败: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// HistoryWindow 读取指定服务 since 之后的历史点（时间升序）
func (s *PostgresStorage) HistoryWindow(ctx context.Context, serviceID string, since time.Time) ([]HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT created_at, status, ok, latency_ms, kind, reason
		FROM check_history
		WHERE service_id = $1 AND created_at >= $2
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
			ok        bool
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
			OK:            ok,
			LatencyMillis: latency,
			Kind:          kind,
			Reason:        ReasonCode(reason),
		})
	}
	return points, rows.Err()
}

// PruneHistory 按保留条数裁剪历史（最旧优先删除）
func (s *PostgresStorage) PruneHistory(ctx context.Context, serviceID string, retain int) (int64, error) {
	if retain < 0 {
		retain = 0
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM check_history
		WHERE service_id = $1 AND id NOT IN (
			SELECT id FROM check_history
			WHERE service_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)`, serviceID, retain)
	if err != nil {
		return 0, fmt.Errorf("裁剪历史失败: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Vacuum 回收存储空间
func (s *PostgresStorage) Vacuum(ctx context.Context) error {
	// VACUUM 不能在事务中执行，直接走单连接
	if _, err := s.pool.Exec(ctx, `VACUUM check_history`); err != nil {
		return fmt.Errorf("VACUUM 失败: %w", err)
	}
	return nil
}

// Reconfigure 一次性存储调优
func (s *PostgresStorage) Reconfigure(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `ANALYZE check_history`); err != nil {
		return fmt.Errorf("存储调优失败: %w", err)
	}
	logger.Info("storage", "PostgreSQL 存储调优完成")
	return nil
}

// GetMeta 读取元数据
func (s *PostgresStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取元数据失败: %w", err)
	}
	return value, nil
}

// SetMeta 写入元数据
func (s *PostgresStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("写入元数据失败: %w", err)
	}
	return nil
}
