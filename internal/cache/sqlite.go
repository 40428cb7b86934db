package cache

import (
	"context"
	"database/sql"
	_ "embed" // embed the schema
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3" // register the sqlite3 dialect
	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/jbmorley/psion-software-index/extractor"
)

var _ extractor.Cache = (*DB)(nil)

//go:embed sql/schema.sql
var schema string

var (
	dialect = goqu.Dialect("sqlite3")
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

// DB is an on-disk result cache.
//
// A DB is safe for concurrent use.
type DB struct {
	db *sql.DB
}

// Open opens or creates the cache database at "path", creating parent
// directories as needed.
//
// The returned DB must have its Close method called.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	u := url.URL{
		Scheme: `file`,
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {
				"busy_timeout(5000)",
				"journal_mode(WAL)",
			},
		}.Encode(),
	}
	db, err := sql.Open(`sqlite`, u.String())
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	// Writers serialize through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("cache: creating schema: %w", err), db.Close())
	}
	return &DB{db: db}, nil
}

// Close releases held resources.
func (c *DB) Close() error {
	return c.db.Close()
}

// Lookup implements [extractor.Cache].
func (c *DB) Lookup(ctx context.Context, command, sha256 string) (*extractor.Result, error) {
	q, args, err := dialect.From("results").
		Select("result").
		Where(goqu.Ex{"command": command, "sha256": sha256}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("cache: building query: %w", err)
	}
	var b []byte
	switch err := c.db.QueryRowContext(ctx, q, args...).Scan(&b); {
	case errors.Is(err, nil):
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("cache: lookup: %w", err)
	}
	var r extractor.Result
	if err := decMode.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("cache: decoding %s/%s: %w", command, sha256, err)
	}
	return &r, nil
}

// Store implements [extractor.Cache].
//
// Failed results are dropped. An existing entry for the key is kept.
func (c *DB) Store(ctx context.Context, command, sha256 string, r *extractor.Result) error {
	if r == nil || r.Outcome == extractor.Failed {
		return nil
	}
	b, err := encMode.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache: encoding: %w", err)
	}
	q, args, err := dialect.Insert("results").
		Rows(goqu.Record{
			"command": command,
			"sha256":  sha256,
			"result":  b,
			"stored":  time.Now().Unix(),
		}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("cache: building query: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}

// Len reports the number of stored results.
func (c *DB) Len(ctx context.Context) (int, error) {
	q, args, err := dialect.From("results").
		Select(goqu.COUNT(goqu.Star())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("cache: building query: %w", err)
	}
	var n int
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}
