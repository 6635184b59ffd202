package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hoopscan/internal/hoop"
	"hoopscan/internal/matcher"
	"hoopscan/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Hoop patterns; the hoop list round-trips as JSON without alteration
	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		symbol TEXT,
		timeframe TEXT,
		hoops TEXT NOT NULL,
		smoothing_type TEXT NOT NULL,
		smoothing_period INTEGER NOT NULL,
		cooldown_bars INTEGER NOT NULL,
		allow_overlap INTEGER NOT NULL,
		combine_mode TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- One row per completed search
	CREATE TABLE IF NOT EXISTS match_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		run_at DATETIME NOT NULL,
		FOREIGN KEY (pattern_id) REFERENCES patterns(id)
	);

	-- One row per completed match within a run
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		anchor_bar INTEGER NOT NULL,
		anchor_price REAL NOT NULL,
		hit_bars TEXT NOT NULL,
		hit_prices TEXT NOT NULL,
		completion_bar INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES match_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_match_runs_pattern ON match_runs(pattern_id);
	CREATE INDEX IF NOT EXISTS idx_matches_run ON matches(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePattern inserts or replaces a pattern.
func (s *SQLiteStore) SavePattern(ctx context.Context, p *hoop.Pattern) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	hoops, err := json.Marshal(p.Hoops)
	if err != nil {
		return fmt.Errorf("encoding hoops: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, name, symbol, timeframe, hoops,
			smoothing_type, smoothing_period, cooldown_bars, allow_overlap, combine_mode, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			symbol = excluded.symbol,
			timeframe = excluded.timeframe,
			hoops = excluded.hoops,
			smoothing_type = excluded.smoothing_type,
			smoothing_period = excluded.smoothing_period,
			cooldown_bars = excluded.cooldown_bars,
			allow_overlap = excluded.allow_overlap,
			combine_mode = excluded.combine_mode,
			updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Name, p.Symbol, p.Timeframe, string(hoops),
		string(p.SmoothingType), p.SmoothingPeriod, p.CooldownBars,
		boolToInt(p.AllowOverlap), string(p.CombineMode))
	if err != nil {
		return fmt.Errorf("saving pattern %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) scanPattern(row interface{ Scan(...interface{}) error }) (*hoop.Pattern, error) {
	var p hoop.Pattern
	var hoops string
	var overlap int
	err := row.Scan(&p.ID, &p.Name, &p.Symbol, &p.Timeframe, &hoops,
		&p.SmoothingType, &p.SmoothingPeriod, &p.CooldownBars, &overlap, &p.CombineMode)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hoops), &p.Hoops); err != nil {
		return nil, fmt.Errorf("decoding hoops for %s: %w", p.ID, err)
	}
	p.AllowOverlap = overlap != 0
	return &p, nil
}

const patternColumns = `id, name, symbol, timeframe, hoops,
	smoothing_type, smoothing_period, cooldown_bars, allow_overlap, combine_mode`

// GetPattern retrieves a pattern by ID.
func (s *SQLiteStore) GetPattern(ctx context.Context, id string) (*hoop.Pattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id)
	p, err := s.scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPatterns retrieves all patterns ordered by name.
func (s *SQLiteStore) ListPatterns(ctx context.Context) ([]*hoop.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM patterns ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*hoop.Pattern
	for rows.Next() {
		p, err := s.scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// DeletePattern removes a pattern by ID.
func (s *SQLiteStore) DeletePattern(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCandles stores candles, replacing duplicates on (symbol, timeframe, timestamp).
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("saving candle at %s: %w", c.Timestamp, err)
		}
	}
	return tx.Commit()
}

// GetCandles retrieves candles in [from, to] ordered by timestamp.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`,
		symbol, timeframe, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ListSeries summarizes the stored candle series.
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles GROUP BY symbol, timeframe ORDER BY symbol, timeframe`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		if err := rows.Scan(&info.Symbol, &info.Timeframe, &info.Bars, &info.From, &info.To); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SaveMatchRun stores a search run and its matches, setting run.ID.
func (s *SQLiteStore) SaveMatchRun(ctx context.Context, run *MatchRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO match_runs (pattern_id, symbol, timeframe, run_at)
		VALUES (?, ?, ?, ?)`,
		run.PatternID, run.Symbol, run.Timeframe, run.RunAt.UTC())
	if err != nil {
		return fmt.Errorf("saving match run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, m := range run.Matches {
		hitBars, err := json.Marshal(m.HitBars)
		if err != nil {
			return err
		}
		hitPrices, err := json.Marshal(m.HitPrices)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matches (run_id, anchor_bar, anchor_price, hit_bars, hit_prices, completion_bar)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, m.AnchorBar, m.AnchorPrice, string(hitBars), string(hitPrices), m.CompletionBar); err != nil {
			return fmt.Errorf("saving match at bar %d: %w", m.AnchorBar, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	run.ID = runID
	return nil
}

// GetMatchRuns retrieves all runs for a pattern, newest first, with matches
// in ascending anchor order.
func (s *SQLiteStore) GetMatchRuns(ctx context.Context, patternID string) ([]MatchRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_id, symbol, timeframe, run_at FROM match_runs
		WHERE pattern_id = ? ORDER BY run_at DESC`, patternID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []MatchRun
	for rows.Next() {
		var run MatchRun
		if err := rows.Scan(&run.ID, &run.PatternID, &run.Symbol, &run.Timeframe, &run.RunAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := s.loadMatches(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStore) loadMatches(ctx context.Context, run *MatchRun) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anchor_bar, anchor_price, hit_bars, hit_prices, completion_bar
		FROM matches WHERE run_id = ? ORDER BY anchor_bar ASC`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var match matcher.Match
		var hitBars, hitPrices string
		if err := rows.Scan(&match.AnchorBar, &match.AnchorPrice, &hitBars, &hitPrices, &match.CompletionBar); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(hitBars), &match.HitBars); err != nil {
			return fmt.Errorf("decoding hit bars: %w", err)
		}
		if err := json.Unmarshal([]byte(hitPrices), &match.HitPrices); err != nil {
			return fmt.Errorf("decoding hit prices: %w", err)
		}
		run.Matches = append(run.Matches, match)
	}
	return rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
