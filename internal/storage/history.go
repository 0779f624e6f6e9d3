package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ErrRunNotFound execução não encontrada no histórico
var ErrRunNotFound = errors.New("run not found")

// HistoryConfig configuração do histórico de execuções
type HistoryConfig struct {
	DBPath  string // Caminho do banco SQLite
	MaxRuns int    // Execuções mantidas (0 = sem limite)
}

// DefaultHistoryConfig retorna configuração padrão
func DefaultHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		DBPath:  filepath.Join("results", "history.db"),
		MaxRuns: 200,
	}
}

// RunRecord uma execução persistida
type RunRecord struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Users         int       `json:"users"`
	DurationS     float64   `json:"duration_s"`
	TotalRequests int       `json:"total_requests"`
	TotalFailures int       `json:"total_failures"`
	FailureRate   float64   `json:"failure_rate_pct"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Passed        bool      `json:"passed"`
	Interrupted   bool      `json:"interrupted"`
	Data          string    `json:"-"` // JSON completo do summary
}

// History gerencia o histórico de execuções em SQLite
type History struct {
	config *HistoryConfig
	db     *sql.DB
}

// NewHistory abre (ou cria) o banco de histórico
func NewHistory(config *HistoryConfig) (*History, error) {
	if config == nil {
		config = DefaultHistoryConfig()
	}

	dir := filepath.Dir(config.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	h := &History{
		config: config,
		db:     db,
	}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug().
		Str("db_path", config.DBPath).
		Int("max_runs", config.MaxRuns).
		Msg("Run history initialized")

	return h, nil
}

// initSchema cria tabelas se não existirem
func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		users INTEGER NOT NULL,
		duration_s REAL NOT NULL,
		total_requests INTEGER NOT NULL,
		total_failures INTEGER NOT NULL,
		failure_rate REAL NOT NULL,
		p95_ms REAL NOT NULL,
		p99_ms REAL NOT NULL,
		passed BOOLEAN NOT NULL,
		interrupted BOOLEAN NOT NULL DEFAULT 0,
		data TEXT NOT NULL, -- JSON do summary
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);
	`

	_, err := h.db.Exec(schema)
	return err
}

// SaveRun grava uma execução e aplica a retenção
func (h *History) SaveRun(ctx context.Context, rec RunRecord) error {
	query := `
		INSERT INTO runs (
			id, started_at, finished_at, users, duration_s,
			total_requests, total_failures, failure_rate, p95_ms, p99_ms,
			passed, interrupted, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := h.db.ExecContext(ctx, query,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Users, rec.DurationS,
		rec.TotalRequests, rec.TotalFailures, rec.FailureRate, rec.P95Ms, rec.P99Ms,
		rec.Passed, rec.Interrupted, rec.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	log.Debug().
		Str("run_id", rec.ID).
		Bool("passed", rec.Passed).
		Msg("Run saved to history")

	if h.config.MaxRuns > 0 {
		if err := h.Cleanup(ctx); err != nil {
			log.Warn().Err(err).Msg("History cleanup failed")
		}
	}

	return nil
}

const runColumns = `id, started_at, finished_at, users, duration_s,
	total_requests, total_failures, failure_rate, p95_ms, p99_ms, passed, interrupted`

// ListRuns lista as execuções mais recentes (sem o JSON completo)
func (h *History) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var rec RunRecord
		if err := scanRun(rows, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}

// GetRun busca uma execução completa pelo ID
func (h *History) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`, data FROM runs WHERE id = ?`, id)
	return scanFullRun(row)
}

// LatestRun busca a execução mais recente, ignorando excludeID
func (h *History) LatestRun(ctx context.Context, excludeID string) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`, data FROM runs WHERE id != ? ORDER BY started_at DESC, created_at DESC LIMIT 1`, excludeID)
	return scanFullRun(row)
}

// Cleanup remove execuções além de MaxRuns
func (h *History) Cleanup(ctx context.Context) error {
	if h.config.MaxRuns <= 0 {
		return nil
	}

	result, err := h.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, created_at DESC LIMIT ?
		)
	`, h.config.MaxRuns)
	if err != nil {
		return fmt.Errorf("failed to cleanup runs: %w", err)
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		log.Debug().
			Int64("deleted", deleted).
			Msg("Old runs removed from history")
	}
	return nil
}

// Close fecha o banco
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, rec *RunRecord, extra ...any) error {
	dest := []any{
		&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Users, &rec.DurationS,
		&rec.TotalRequests, &rec.TotalFailures, &rec.FailureRate, &rec.P95Ms, &rec.P99Ms,
		&rec.Passed, &rec.Interrupted,
	}
	return s.Scan(append(dest, extra...)...)
}

func scanFullRun(row *sql.Row) (*RunRecord, error) {
	var rec RunRecord
	if err := scanRun(row, &rec, &rec.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return &rec, nil
}
