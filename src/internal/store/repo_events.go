package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/google/uuid"

	"go.uber.org/zap"
)

const eventColumns = `id, project_id, title, description, start_time, end_time, auto_accept, work_item_type, fields`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e          model.Event
		start, end sql.NullTime
		fields     []byte
	)
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Description, &start, &end, &e.AutoAccept, &e.WorkItemType, &fields); err != nil {
		return model.Event{}, err
	}
	e.StartTime = nullTime(start)
	e.EndTime = nullTime(end)
	f, err := decodeFields(fields)
	if err != nil {
		return model.Event{}, err
	}
	e.Fields = f
	return e, nil
}

func (r *Repositories) ListEvents(ctx context.Context, projectID string) ([]model.Event, error) {
	r.Log.Debug("ListEvents: start", zap.String("project_id", projectID))
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM bug_bashes WHERE project_id=$1 ORDER BY title`, projectID)
	if err != nil {
		r.Log.Error("ListEvents: query failed", zap.Error(err))
		return nil, err
	}
	defer r.closeRows(rows, "ListEvents")

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			r.Log.Error("ListEvents: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error("ListEvents: rows error", zap.Error(err))
		return nil, err
	}
	r.Log.Debug("ListEvents: success", zap.Int("count", len(out)))
	return out, nil
}

func (r *Repositories) GetEvent(ctx context.Context, id string) (model.Event, error) {
	r.Log.Debug("GetEvent: start", zap.String("event_id", id))
	e, err := scanEvent(r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM bug_bashes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetEvent: not found", zap.String("event_id", id))
			return model.Event{}, model.ErrNotFound
		}
		r.Log.Error("GetEvent: query failed", zap.String("event_id", id), zap.Error(err))
		return model.Event{}, err
	}
	return e, nil
}

func (r *Repositories) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	e.ID = uuid.New().String()
	r.Log.Debug("CreateEvent: start", zap.String("event_id", e.ID))
	fields, err := encodeFields(e.Fields)
	if err != nil {
		return model.Event{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO bug_bashes(`+eventColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.ProjectID, e.Title, e.Description, e.StartTime, e.EndTime, e.AutoAccept, e.WorkItemType, fields)
	if err != nil {
		r.Log.Error("CreateEvent: insert failed", zap.String("event_id", e.ID), zap.Error(err))
		return model.Event{}, err
	}
	r.Log.Info("CreateEvent: success", zap.String("event_id", e.ID))
	return e, nil
}

// UpdateEvent replaces the whole event document.
func (r *Repositories) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	r.Log.Debug("UpdateEvent: start", zap.String("event_id", e.ID))
	fields, err := encodeFields(e.Fields)
	if err != nil {
		return model.Event{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bug_bashes SET title=$2, description=$3, start_time=$4, end_time=$5, auto_accept=$6, work_item_type=$7, fields=$8 WHERE id=$1`,
		e.ID, e.Title, e.Description, e.StartTime, e.EndTime, e.AutoAccept, e.WorkItemType, fields)
	if err != nil {
		r.Log.Error("UpdateEvent: update failed", zap.String("event_id", e.ID), zap.Error(err))
		return model.Event{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.Log.Debug("UpdateEvent: not found", zap.String("event_id", e.ID))
		return model.Event{}, model.ErrNotFound
	}
	r.Log.Info("UpdateEvent: success", zap.String("event_id", e.ID))
	return r.GetEvent(ctx, e.ID)
}

// DeleteEvent removes the event; items and comments cascade.
func (r *Repositories) DeleteEvent(ctx context.Context, id string) error {
	r.Log.Debug("DeleteEvent: start", zap.String("event_id", id))
	res, err := r.DB.ExecContext(ctx, `DELETE FROM bug_bashes WHERE id=$1`, id)
	if err != nil {
		r.Log.Error("DeleteEvent: delete failed", zap.String("event_id", id), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	r.Log.Info("DeleteEvent: success", zap.String("event_id", id))
	return nil
}
