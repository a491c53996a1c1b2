package theme

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	u "svgserve/internal/utils"
)

var tables struct {
	sync.RWMutex
	snapshot *Tables
}

var themeDB struct {
	sync.Mutex
	dsn string
	db  *sql.DB
}

func postgresPort(cfg u.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg u.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	// Handle IPv6 or explicit host:port strings.
	if strings.HasPrefix(hostPort, "[") {
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	} else if strings.Count(hostPort, ":") >= 2 {
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	} else if !strings.Contains(hostPort, ":") {
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	dsn := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		dsn.User = url.User(cfg.User)
	}
	q := dsn.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	dsn.RawQuery = q.Encode()
	return dsn.String(), nil
}

func getThemeDB(cfg u.PostgresConfig) (*sql.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	themeDB.Lock()
	defer themeDB.Unlock()

	if themeDB.db != nil && themeDB.dsn == dsn {
		return themeDB.db, nil
	}
	if themeDB.db != nil {
		_ = themeDB.db.Close()
		themeDB.db = nil
		themeDB.dsn = ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Two small, low-churn lookup tables.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	themeDB.db = db
	themeDB.dsn = dsn
	return themeDB.db, nil
}

func ensureThemeSchema(cfg u.PostgresConfig) error {
	db, err := getThemeDB(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddl1 := `CREATE TABLE IF NOT EXISTS styles (
		style_id INTEGER PRIMARY KEY,
		properties TEXT NOT NULL DEFAULT '{}',
		last_modified BIGINT NOT NULL DEFAULT 0
	);`
	ddl2 := `CREATE TABLE IF NOT EXISTS languages (
		language_id INTEGER PRIMARY KEY,
		text_direction TEXT NOT NULL DEFAULT 'LTR'
	);`
	if _, err := db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// LoadFromPostgres reads both theme tables from Postgres and replaces the
// in-memory snapshot. The configured default ids are carried in the snapshot
// so resolution never depends on insertion order.
func LoadFromPostgres(cfg u.PostgresConfig, defaultStyleID, defaultLanguageID int) error {
	if err := ensureThemeSchema(cfg); err != nil {
		return err
	}

	db, err := getThemeDB(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	styles := make(map[int]Style)
	rows, err := db.QueryContext(ctx, `SELECT style_id, properties, last_modified FROM styles;`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s Style
		if err := rows.Scan(&s.ID, &s.Properties, &s.LastModified); err != nil {
			return err
		}
		styles[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return err
	}

	languages := make(map[int]Language)
	langRows, err := db.QueryContext(ctx, `SELECT language_id, text_direction FROM languages;`)
	if err != nil {
		return err
	}
	defer langRows.Close()
	for langRows.Next() {
		var id int
		var dir string
		if err := langRows.Scan(&id, &dir); err != nil {
			return err
		}
		lang := Language{ID: id, Direction: DirectionLTR}
		if strings.EqualFold(dir, string(DirectionRTL)) {
			lang.Direction = DirectionRTL
		}
		languages[id] = lang
	}
	if err := langRows.Err(); err != nil {
		return err
	}

	setSnapshot(Tables{
		Styles:            styles,
		Languages:         languages,
		DefaultStyleID:    defaultStyleID,
		DefaultLanguageID: defaultLanguageID,
	})
	return nil
}

// LoadFromMap replaces the snapshot directly. Intended for tests and local
// debugging.
func LoadFromMap(styles map[int]Style, languages map[int]Language, defaultStyleID, defaultLanguageID int) {
	sm := make(map[int]Style, len(styles))
	for k, v := range styles {
		sm[k] = v
	}
	lm := make(map[int]Language, len(languages))
	for k, v := range languages {
		lm[k] = v
	}
	setSnapshot(Tables{
		Styles:            sm,
		Languages:         lm,
		DefaultStyleID:    defaultStyleID,
		DefaultLanguageID: defaultLanguageID,
	})
}

func setSnapshot(t Tables) {
	tables.Lock()
	tables.snapshot = &t
	tables.Unlock()
}

// Snapshot returns the current tables. Before the first load it returns an
// empty snapshot, which resolves every request to the zero style and LTR.
func Snapshot() Tables {
	tables.RLock()
	defer tables.RUnlock()
	if tables.snapshot == nil {
		return Tables{Styles: map[int]Style{}, Languages: map[int]Language{}}
	}
	return *tables.snapshot
}

// Ready returns true once a snapshot has been loaded at least once.
func Ready() bool {
	tables.RLock()
	defer tables.RUnlock()
	return tables.snapshot != nil
}

// RefreshPeriodicallyFromPostgres reloads the theme tables at the given
// interval until the stop channel is closed.
func RefreshPeriodicallyFromPostgres(cfg u.PostgresConfig, defaultStyleID, defaultLanguageID int, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := LoadFromPostgres(cfg, defaultStyleID, defaultLanguageID); err != nil {
				u.Error("Failed to reload theme tables", "error", err)
			}
		case <-stop:
			return
		}
	}
}
