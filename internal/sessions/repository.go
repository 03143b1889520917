package sessions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranakit/reconcile/internal/catalog"
	"github.com/kiranakit/reconcile/internal/pipeline"
	"github.com/kiranakit/reconcile/pkg/ocr"
	"github.com/kiranakit/reconcile/pkg/pagination"
	"github.com/kiranakit/reconcile/pkg/query"
	"github.com/kiranakit/reconcile/pkg/repository"
	"github.com/kiranakit/reconcile/pkg/storage"
	"github.com/kiranakit/reconcile/pkg/validate"
)

const rowColumns = `id, session_id, row_index, name_raw, quantity, unit,
			  unit_price, line_total, confidence, decision, version,
			  match_decision, match_product_id, match_product_version,
			  match_similarity, candidates, flags, edited`

type repo struct {
	db            *sql.DB
	processor     *pipeline.Processor
	catalog       catalog.System
	storage       storage.System
	validateCfg   validate.Config
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// New creates a session repository implementing the System interface.
func New(
	db *sql.DB,
	processor *pipeline.Processor,
	catalogSys catalog.System,
	store storage.System,
	validateCfg validate.Config,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) System {
	return &repo{
		db:            db,
		processor:     processor,
		catalog:       catalogSys,
		storage:       store,
		validateCfg:   validateCfg,
		logger:        logger.With("system", "sessions"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination, r.maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Session], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(sessionProjection, defaultSort).
		WhereSearch(page.Search, "SourceImageKey", "Warning")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSession)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Session, error) {
	q, args := query.NewBuilder(sessionProjection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSession)
	if err != nil {
		return nil, repository.MapError(err, ErrSessionNotFound, ErrSessionNotFound)
	}

	rowsQ, rowsArgs := query.
		NewBuilder(rowProjection, rowSort).
		WhereEquals("SessionID", id).
		Build()

	rows, err := repository.QueryMany(ctx, r.db, rowsQ, rowsArgs, scanRow)
	if err != nil {
		return nil, fmt.Errorf("query session rows: %w", err)
	}

	s.Rows = rows
	return &s, nil
}

// Create uploads the invoice image, runs the extraction pipeline against
// a catalog snapshot, and persists the resulting session. A decode
// failure creates no session. Any other pipeline failure persists the
// session in failed status so the upload is never silently lost.
func (r *repo) Create(ctx context.Context, filename string, image []byte) (*Session, error) {
	if r.maxUploadSize > 0 && int64(len(image)) > r.maxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ocr.ErrPayloadTooLarge, len(image))
	}

	id := uuid.New()
	key := imageKey(id, filename)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(image), contentTypeFor(filename)); err != nil {
		return nil, fmt.Errorf("upload invoice image: %w", err)
	}

	snapshot, err := r.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshot: %w", err)
	}

	result, err := r.processor.Process(ctx, image, snapshot)
	if err != nil {
		if errors.Is(err, ocr.ErrDecode) {
			return nil, err
		}
		return r.createFailed(ctx, id, key, err)
	}

	built := NewSession(id, key, result)

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Session, error) {
		sess, err := insertSession(ctx, tx, id, key, built.Status, built.Warning)
		if err != nil {
			return Session{}, err
		}

		for _, row := range built.Rows {
			if err := insertRow(ctx, tx, row); err != nil {
				return Session{}, err
			}
			sess.Rows = append(sess.Rows, row)
		}

		return sess, nil
	})

	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	r.logger.Info("session created",
		"id", s.ID,
		"rows", len(s.Rows),
		"warning", s.Warning,
	)
	return &s, nil
}

func (r *repo) ApproveRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd DecideCommand) (*Row, error) {
	return r.mutateRow(ctx, sessionID, rowID, cmd.Version, cmd.Edits, DecisionApproved)
}

func (r *repo) RejectRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd DecideCommand) (*Row, error) {
	return r.mutateRow(ctx, sessionID, rowID, cmd.Version, nil, DecisionRejected)
}

func (r *repo) EditRow(ctx context.Context, sessionID, rowID uuid.UUID, cmd EditCommand) (*Row, error) {
	return r.mutateRow(ctx, sessionID, rowID, cmd.Version, cmd.Edits, "")
}

// Commit moves the session to committed and applies every approved
// row's delta to the catalog. The status transition is claimed first
// with a guarded update so concurrent commits of the same session
// cannot both apply deltas; the loser sees ErrInvalidTransition.
// Individual row failures are collected rather than aborting the
// commit; the catalog applies each row atomically.
func (r *repo) Commit(ctx context.Context, id uuid.UUID) (*CommitResult, error) {
	s, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.EnsureCommittable(); err != nil {
		return nil, err
	}

	claimQ := `
		UPDATE sessions
		SET status = $1, committed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`

	if err := repository.ExecExpectOne(ctx, r.db, claimQ,
		string(StatusCommitted), id,
		string(StatusPending), string(StatusPartiallyApproved),
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("mark session committed: %w", err)
	}

	result := ApplyApproved(ctx, r.catalog, s)

	if len(result.Errors) > 0 {
		warning := fmt.Sprintf("%d of %d approved rows failed to apply",
			len(result.Errors), result.CommittedCount+len(result.Errors))
		if _, err := r.db.ExecContext(ctx,
			"UPDATE sessions SET warning = $1, updated_at = NOW() WHERE id = $2",
			warning, id,
		); err != nil {
			return nil, fmt.Errorf("record commit warning: %w", err)
		}
	}

	r.logger.Info("session committed",
		"id", id,
		"committed", result.CommittedCount,
		"errors", len(result.Errors),
	)
	return &result, nil
}

func (r *repo) Discard(ctx context.Context, id uuid.UUID) (*Session, error) {
	discardQ := `
		UPDATE sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`

	err := repository.ExecExpectOne(ctx, r.db, discardQ,
		string(StatusDiscarded), id,
		string(StatusPending), string(StatusPartiallyApproved),
	)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("discard session: %w", err)
		}

		var exists bool
		if checkErr := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)", id,
		).Scan(&exists); checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, ErrSessionNotFound
		}
		return nil, ErrInvalidTransition
	}

	r.logger.Info("session discarded", "id", id)
	return r.Find(ctx, id)
}

// mutateRow performs a version-guarded row mutation. An empty decision
// edits the row without recording a verdict. Edits re-run validation so
// corrected rows shed stale flags.
func (r *repo) mutateRow(
	ctx context.Context,
	sessionID, rowID uuid.UUID,
	version int,
	edits *Edits,
	decision Decision,
) (*Row, error) {
	row, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Row, error) {
		var status Status
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM sessions WHERE id = $1", sessionID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, ErrSessionNotFound
		}
		if err != nil {
			return Row{}, err
		}
		if status.Terminal() {
			return Row{}, ErrInvalidTransition
		}

		rowQ, rowArgs := query.NewBuilder(rowProjection).BuildSingle("ID", rowID)
		row, err := repository.QueryOne(ctx, tx, rowQ, rowArgs, scanRow)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && row.SessionID != sessionID) {
			return Row{}, ErrRowNotFound
		}
		if err != nil {
			return Row{}, err
		}
		if row.Version != version {
			return Row{}, ErrConflict
		}

		if !edits.Empty() {
			row.ApplyEdits(edits)
			row.Flags = validate.Check(row.Item(), r.validateCfg)
		}
		if decision != "" {
			row.Decision = decision
		}
		row.Version++

		if err := updateRow(ctx, tx, row, version); err != nil {
			return Row{}, err
		}

		sessionStatus := status
		if decision != "" && status == StatusPending {
			sessionStatus = StatusPartiallyApproved
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2",
			string(sessionStatus), sessionID,
		); err != nil {
			return Row{}, fmt.Errorf("update session status: %w", err)
		}

		return row, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("session row updated",
		"session_id", sessionID,
		"row_id", rowID,
		"decision", row.Decision,
		"version", row.Version,
	)
	return &row, nil
}

func (r *repo) createFailed(ctx context.Context, id uuid.UUID, key string, cause error) (*Session, error) {
	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Session, error) {
		return insertSession(ctx, tx, id, key, StatusFailed, cause.Error())
	})
	if err != nil {
		return nil, fmt.Errorf("persist failed session: %w", err)
	}

	r.logger.Error("session failed",
		"id", id,
		"error", cause,
	)
	return &s, nil
}

func insertSession(
	ctx context.Context,
	tx *sql.Tx,
	id uuid.UUID,
	key string,
	status Status,
	warning string,
) (Session, error) {
	insertQ := `
		INSERT INTO sessions (id, source_image_key, status, warning)
		VALUES ($1, $2, $3, $4)
		RETURNING id, source_image_key, status, warning, created_at, updated_at, committed_at`

	s, err := repository.QueryOne(ctx, tx, insertQ,
		[]any{id, key, string(status), warning},
		scanSession,
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func insertRow(ctx context.Context, tx *sql.Tx, row Row) error {
	confidence, candidates, flags, edited, err := marshalRowJSON(row)
	if err != nil {
		return err
	}

	insertQ := `
		INSERT INTO session_rows (
			id, session_id, row_index, name_raw, quantity, unit, unit_price,
			line_total, confidence, decision, version, match_decision,
			match_product_id, match_product_version, match_similarity,
			candidates, flags, edited
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	if _, err := tx.ExecContext(ctx, insertQ,
		row.ID, row.SessionID, row.Index, row.NameRaw, row.Quantity, row.Unit,
		row.UnitPrice, row.LineTotal, confidence, string(row.Decision),
		row.Version, string(row.MatchDecision), row.MatchProductID,
		row.MatchProductVersion, row.MatchSimilarity, candidates, flags, edited,
	); err != nil {
		return fmt.Errorf("insert session row: %w", err)
	}
	return nil
}

// updateRow rewrites a row's mutable columns. Candidates are fixed at
// extraction time and never updated.
func updateRow(ctx context.Context, tx *sql.Tx, row Row, guardVersion int) error {
	confidence, _, flags, edited, err := marshalRowJSON(row)
	if err != nil {
		return err
	}

	updateQ := `
		UPDATE session_rows
		SET name_raw = $1, quantity = $2, unit = $3, unit_price = $4,
			line_total = $5, confidence = $6, decision = $7, version = $8,
			match_product_id = $9, match_product_version = $10,
			flags = $11, edited = $12
		WHERE id = $13 AND version = $14`

	if err := repository.ExecExpectOne(ctx, tx, updateQ,
		row.NameRaw, row.Quantity, row.Unit, row.UnitPrice, row.LineTotal,
		confidence, string(row.Decision), row.Version, row.MatchProductID,
		row.MatchProductVersion, flags, edited, row.ID, guardVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("update session row: %w", err)
	}
	return nil
}

func marshalRowJSON(row Row) (confidence, candidates, flags, edited []byte, err error) {
	if confidence, err = json.Marshal(row.Confidence); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal confidence: %w", err)
	}
	if candidates, err = json.Marshal(row.Candidates); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal candidates: %w", err)
	}
	if flags, err = json.Marshal(row.Flags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal flags: %w", err)
	}
	if row.Edited != nil {
		if edited, err = json.Marshal(row.Edited); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal edited: %w", err)
		}
	}
	return confidence, candidates, flags, edited, nil
}

func imageKey(id uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("invoices/%s%s", id, ext)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
