package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/pkg/match"
	"github.com/kiranakit/reconcile/pkg/pagination"
	"github.com/kiranakit/reconcile/pkg/query"
	"github.com/kiranakit/reconcile/pkg/repository"
)

// searchFloor is the minimum similarity score for fuzzy search results.
const searchFloor = 0.3

// searchLimit caps the number of fuzzy search results.
const searchLimit = 20

const entryColumns = `id, canonical_name, brand, category, current_stock,
			  current_price, version, extensions, created_at, updated_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a catalog repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "catalog"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "CanonicalName", "Brand", "Category")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count catalog entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query catalog entries: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

// Search returns entries ranked by name similarity against the query.
// Results below the similarity floor are dropped.
func (r *repo) Search(ctx context.Context, name string) ([]Entry, error) {
	q, args := query.NewBuilder(projection, defaultSort).Build()
	entries, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query catalog entries: %w", err)
	}

	type scored struct {
		entry Entry
		score float64
	}

	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		score := match.Similarity(name, e.CanonicalName)
		if score >= searchFloor {
			ranked = append(ranked, scored{entry: e, score: score})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}

	results := make([]Entry, len(ranked))
	for i, s := range ranked {
		results[i] = s.entry
	}
	return results, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Entry, error) {
	if cmd.CanonicalName == "" {
		return nil, fmt.Errorf("%w: canonical_name is required", ErrInvalidEntry)
	}

	extensionsJSON, err := marshalExtensions(cmd.Extensions)
	if err != nil {
		return nil, err
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO catalog_entries (canonical_name, brand, category, current_stock, current_price, extensions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, entryColumns)

	e, err := repository.QueryOne(ctx, r.db, insertQ,
		[]any{cmd.CanonicalName, cmd.Brand, cmd.Category, cmd.CurrentStock, cmd.CurrentPrice, extensionsJSON},
		scanEntry,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("catalog entry created",
		"id", e.ID,
		"canonical_name", e.CanonicalName,
	)
	return &e, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Entry, error) {
	var extensionsJSON []byte
	if cmd.Extensions != nil {
		data, err := marshalExtensions(cmd.Extensions)
		if err != nil {
			return nil, err
		}
		extensionsJSON = data
	}

	updateQ := fmt.Sprintf(`
		UPDATE catalog_entries
		SET canonical_name = COALESCE($1, canonical_name),
			brand = COALESCE($2, brand),
			category = COALESCE($3, category),
			current_stock = COALESCE($4, current_stock),
			current_price = COALESCE($5, current_price),
			extensions = COALESCE($6, extensions),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $7 AND version = $8
		RETURNING %s`, entryColumns)

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		updated, err := repository.QueryOne(ctx, tx, updateQ,
			[]any{
				cmd.CanonicalName, cmd.Brand, cmd.Category,
				cmd.CurrentStock, cmd.CurrentPrice, extensionsJSON,
				id, cmd.Version,
			},
			scanEntry,
		)
		if err != nil {
			return Entry{}, r.resolveVersionMiss(ctx, tx, id, err)
		}
		return updated, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("catalog entry updated",
		"id", e.ID,
		"version", e.Version,
	)
	return &e, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM catalog_entries WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("catalog entry deleted", "id", id)
	return nil
}

// ApplyDelta applies one approved reconciliation row to the catalog and
// records the mutation in the audit trail within the same transaction.
// New-product deltas insert an entry; existing-product deltas increment
// stock and optionally update price, guarded by the expected version.
func (r *repo) ApplyDelta(ctx context.Context, d Delta) (*Entry, error) {
	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		var entry Entry
		var err error

		if d.ProductID == uuid.Nil {
			entry, err = r.insertFromDelta(ctx, tx, d)
		} else {
			entry, err = r.incrementFromDelta(ctx, tx, d)
		}
		if err != nil {
			return Entry{}, err
		}

		auditQ := `
			INSERT INTO stock_mutations (session_id, row_id, product_id, kind, stock_delta, price, entry_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`

		if _, err := tx.ExecContext(ctx, auditQ,
			d.SessionID, d.RowID, entry.ID, string(d.Kind()),
			d.StockDelta, d.Price, entry.Version,
		); err != nil {
			return Entry{}, fmt.Errorf("record stock mutation: %w", err)
		}

		return entry, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("catalog delta applied",
		"id", e.ID,
		"kind", d.Kind(),
		"stock_delta", d.StockDelta,
		"version", e.Version,
	)
	return &e, nil
}

// Snapshot returns all entries as match candidates. The reconciliation
// pipeline scores extracted line items against this set, and the version
// captured here backs the commit-time conflict checks.
func (r *repo) Snapshot(ctx context.Context) ([]match.Candidate, error) {
	q := "SELECT id, canonical_name, version FROM catalog_entries ORDER BY canonical_name"

	candidates, err := repository.QueryMany(ctx, r.db, q, nil,
		func(s repository.Scanner) (match.Candidate, error) {
			var c match.Candidate
			err := s.Scan(&c.ProductID, &c.Name, &c.Version)
			return c, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog snapshot: %w", err)
	}

	return candidates, nil
}

func (r *repo) insertFromDelta(ctx context.Context, tx *sql.Tx, d Delta) (Entry, error) {
	if d.Name == "" {
		return Entry{}, fmt.Errorf("%w: new product requires a name", ErrInvalidEntry)
	}

	var price float64
	if d.Price != nil {
		price = *d.Price
	}

	insertQ := fmt.Sprintf(`
		INSERT INTO catalog_entries (canonical_name, current_stock, current_price)
		VALUES ($1, $2, $3)
		RETURNING %s`, entryColumns)

	entry, err := repository.QueryOne(ctx, tx, insertQ,
		[]any{d.Name, d.StockDelta, price},
		scanEntry,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert catalog entry: %w", err)
	}
	return entry, nil
}

func (r *repo) incrementFromDelta(ctx context.Context, tx *sql.Tx, d Delta) (Entry, error) {
	updateQ := fmt.Sprintf(`
		UPDATE catalog_entries
		SET current_stock = current_stock + $1,
			current_price = COALESCE($2, current_price),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING %s`, entryColumns)

	entry, err := repository.QueryOne(ctx, tx, updateQ,
		[]any{d.StockDelta, d.Price, d.ProductID, d.ExpectedVersion},
		scanEntry,
	)
	if err != nil {
		return Entry{}, r.resolveVersionMiss(ctx, tx, d.ProductID, err)
	}
	return entry, nil
}

// resolveVersionMiss distinguishes a stale version from a missing entry
// when a version-guarded update matched no rows.
func (r *repo) resolveVersionMiss(ctx context.Context, tx *sql.Tx, id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var version int
	checkErr := tx.QueryRowContext(ctx,
		"SELECT version FROM catalog_entries WHERE id = $1", id,
	).Scan(&version)

	if errors.Is(checkErr, sql.ErrNoRows) {
		return ErrNotFound
	}
	if checkErr != nil {
		return checkErr
	}
	return ErrConflict
}

func marshalExtensions(extensions map[string]any) ([]byte, error) {
	if extensions == nil {
		extensions = map[string]any{}
	}
	data, err := json.Marshal(extensions)
	if err != nil {
		return nil, fmt.Errorf("marshal extensions: %w", err)
	}
	return data, nil
}
