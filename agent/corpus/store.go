package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	authorSeparator = "; "
)

type Config struct {
	Driver string `envconfig:"DRIVER" split_words:"true" default:"sqlite"`
	DSN    string `envconfig:"DSN" split_words:"true" default:"file:arxivagent.db?_pragma=busy_timeout(5000)"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unsupported corpus driver %q", contractx.ErrValidation, c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("%w: corpus dsn is required", contractx.ErrValidation)
	}
	return nil
}

type documentSetRow struct {
	bun.BaseModel `bun:"table:document_sets,alias:ds"`

	ID        int64          `bun:"id,pk,autoincrement"`
	Position  int            `bun:"position,notnull,unique"`
	Topic     string         `bun:"topic,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Documents []*documentRow `bun:"rel:has-many,join:id=set_id"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID         int64  `bun:"id,pk,autoincrement"`
	SetID      int64  `bun:"set_id,notnull"`
	Ordinal    int    `bun:"ordinal,notnull"`
	ExternalID string `bun:"external_id"`
	Title      string `bun:"title,notnull"`
	Body       string `bun:"body,notnull"`
	Authors    string `bun:"authors"`
	URL        string `bun:"url"`
}

// Store keeps pre-ingested document sets addressed by position.
type Store struct {
	db *bun.DB
}

var _ contractx.CorpusStore = (*Store)(nil)

// Open connects to the configured database. The caller owns the returned store
// and must Close it.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *bun.DB
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite corpus: %w", err)
		}
		// A single connection keeps in-memory databases alive and avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}
	return NewStore(db), nil
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the corpus tables when they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	models := []any{(*documentSetRow)(nil), (*documentRow)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create corpus table: %w", err)
		}
	}
	if _, err := s.db.NewCreateIndex().
		Model((*documentRow)(nil)).
		Index("documents_set_ordinal_idx").
		Column("set_id", "ordinal").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create corpus index: %w", err)
	}
	return nil
}

// DocumentSet returns the documents stored at position, in ingest order.
func (s *Store) DocumentSet(ctx context.Context, position int) (contractx.DocumentSet, error) {
	row := new(documentSetRow)
	err := s.db.NewSelect().
		Model(row).
		Relation("Documents", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ordinal ASC")
		}).
		Where("position = ?", position).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.DocumentSet{}, fmt.Errorf("%w: position %d", contractx.ErrDocumentSetAbsent, position)
	}
	if err != nil {
		return contractx.DocumentSet{}, fmt.Errorf("load document set %d: %w", position, err)
	}
	return row.toContract(), nil
}

// Ingest replaces the stored sets at the positions present in sets.
func (s *Store) Ingest(ctx context.Context, sets []contractx.DocumentSet) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, set := range sets {
			if err := replaceSet(ctx, tx, set); err != nil {
				return err
			}
			log.Info().Int("position", set.Position).Int("documents", len(set.Documents)).Msg("document set ingested")
		}
		return nil
	})
}

// Positions lists the stored set positions in ascending order.
func (s *Store) Positions(ctx context.Context) ([]int, error) {
	var positions []int
	err := s.db.NewSelect().
		Model((*documentSetRow)(nil)).
		Column("position").
		Order("position ASC").
		Scan(ctx, &positions)
	if err != nil {
		return nil, fmt.Errorf("list document sets: %w", err)
	}
	return positions, nil
}

func replaceSet(ctx context.Context, tx bun.Tx, set contractx.DocumentSet) error {
	existing := tx.NewSelect().
		Model((*documentSetRow)(nil)).
		Column("id").
		Where("position = ?", set.Position)

	if _, err := tx.NewDelete().
		Model((*documentRow)(nil)).
		Where("set_id IN (?)", existing).
		Exec(ctx); err != nil {
		return fmt.Errorf("clear documents of set %d: %w", set.Position, err)
	}
	if _, err := tx.NewDelete().
		Model((*documentSetRow)(nil)).
		Where("position = ?", set.Position).
		Exec(ctx); err != nil {
		return fmt.Errorf("clear set %d: %w", set.Position, err)
	}

	row := &documentSetRow{Position: set.Position, Topic: strings.TrimSpace(set.Topic)}
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert set %d: %w", set.Position, err)
	}
	if len(set.Documents) == 0 {
		return nil
	}

	docs := make([]*documentRow, 0, len(set.Documents))
	for i, d := range set.Documents {
		docs = append(docs, &documentRow{
			SetID:      row.ID,
			Ordinal:    i,
			ExternalID: d.ID,
			Title:      d.Title,
			Body:       d.Text,
			Authors:    strings.Join(d.Authors, authorSeparator),
			URL:        d.URL,
		})
	}
	if _, err := tx.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("insert documents of set %d: %w", set.Position, err)
	}
	return nil
}

func (r *documentSetRow) toContract() contractx.DocumentSet {
	out := contractx.DocumentSet{
		Position:  r.Position,
		Topic:     r.Topic,
		Documents: make([]contractx.Document, 0, len(r.Documents)),
	}
	for _, d := range r.Documents {
		doc := contractx.Document{
			ID:    d.ExternalID,
			Title: d.Title,
			Text:  d.Body,
			URL:   d.URL,
		}
		if d.Authors != "" {
			doc.Authors = strings.Split(d.Authors, authorSeparator)
		}
		out.Documents = append(out.Documents, doc)
	}
	return out
}
