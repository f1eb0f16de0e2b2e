package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/lib/pq"

	"go.uber.org/zap"
)

// Repository is the document persistence collaborator.
type Repository interface {
	ListEvents(ctx context.Context, projectID string) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	ListItems(ctx context.Context, eventID string) ([]model.Item, error)
	GetItem(ctx context.Context, eventID, itemID string) (model.Item, error)
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, item model.Item) (model.Item, error)
	DeleteItems(ctx context.Context, eventID string, itemIDs []string) error

	ListComments(ctx context.Context, itemID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, c model.Comment) (model.Comment, error)
}

type Repositories struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewRepositories(db *sql.DB, logger *zap.Logger) *Repositories {
	return &Repositories{DB: db, Log: logger}
}

func (r *Repositories) BeginTx(ctx context.Context) (*sql.Tx, error) {
	r.Log.Debug("BeginTx called")
	return r.DB.BeginTx(ctx, &sql.TxOptions{})
}

func (r *Repositories) rollback(tx *sql.Tx, op string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.Log.Warn(op+": rollback failed", zap.Error(err))
	}
}

func (r *Repositories) closeRows(rows *sql.Rows, op string) {
	if err := rows.Close(); err != nil {
		r.Log.Error(op+": close rows failed", zap.Error(err))
	}
}

var _ Repository = (*Repositories)(nil)

const pqForeignKeyViolation = "23503"

// isMissingParent reports a foreign key violation: the referenced event or
// item no longer exists.
func isMissingParent(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// encodeFields renders a field bag as JSON text; lib/pq would send []byte as bytea.
func encodeFields(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	raw, err := json.Marshal(fields)
	return string(raw), err
}

func decodeFields(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
