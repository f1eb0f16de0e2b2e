package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/google/uuid"

	"go.uber.org/zap"
)

const itemColumns = `id, bug_bash_id, title, description, team_id, created_by, created_at, rejected, rejected_by, reject_reason, work_item_id, fields`

func scanItem(row rowScanner) (model.Item, error) {
	var (
		it         model.Item
		workItemID sql.NullInt64
		fields     []byte
	)
	if err := row.Scan(&it.ID, &it.EventID, &it.Title, &it.Description, &it.TeamID, &it.CreatedBy, &it.CreatedDate,
		&it.Rejected, &it.RejectedBy, &it.RejectReason, &workItemID, &fields); err != nil {
		return model.Item{}, err
	}
	it.WorkItemID = nullInt(workItemID)
	f, err := decodeFields(fields)
	if err != nil {
		return model.Item{}, err
	}
	it.Fields = f
	return it, nil
}

func (r *Repositories) ListItems(ctx context.Context, eventID string) ([]model.Item, error) {
	r.Log.Debug("ListItems: start", zap.String("event_id", eventID))
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM bug_bash_items WHERE bug_bash_id=$1 ORDER BY created_at`, eventID)
	if err != nil {
		r.Log.Error("ListItems: query failed", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	defer r.closeRows(rows, "ListItems")

	var out []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			r.Log.Error("ListItems: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error("ListItems: rows error", zap.Error(err))
		return nil, err
	}
	r.Log.Debug("ListItems: success", zap.String("event_id", eventID), zap.Int("count", len(out)))
	return out, nil
}

func (r *Repositories) GetItem(ctx context.Context, eventID, itemID string) (model.Item, error) {
	r.Log.Debug("GetItem: start", zap.String("item_id", itemID))
	it, err := scanItem(r.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM bug_bash_items WHERE bug_bash_id=$1 AND id=$2`, eventID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetItem: not found", zap.String("item_id", itemID))
			return model.Item{}, model.ErrNotFound
		}
		r.Log.Error("GetItem: query failed", zap.String("item_id", itemID), zap.Error(err))
		return model.Item{}, err
	}
	return it, nil
}

func (r *Repositories) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	item.ID = uuid.New().String()
	r.Log.Debug("CreateItem: start", zap.String("event_id", item.EventID), zap.String("item_id", item.ID))
	fields, err := encodeFields(item.Fields)
	if err != nil {
		return model.Item{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO bug_bash_items(`+itemColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		item.ID, item.EventID, item.Title, item.Description, item.TeamID, item.CreatedBy, item.CreatedDate,
		item.Rejected, item.RejectedBy, item.RejectReason, item.WorkItemID, fields)
	if err != nil {
		if isMissingParent(err) {
			r.Log.Debug("CreateItem: event not found", zap.String("event_id", item.EventID))
			return model.Item{}, model.ErrNotFound
		}
		r.Log.Error("CreateItem: insert failed", zap.String("item_id", item.ID), zap.Error(err))
		return model.Item{}, err
	}
	r.Log.Info("CreateItem: success", zap.String("item_id", item.ID))
	return item, nil
}

// UpdateItem replaces the mutable columns. The owning event, creator and
// creation time never change.
func (r *Repositories) UpdateItem(ctx context.Context, item model.Item) (model.Item, error) {
	r.Log.Debug("UpdateItem: start", zap.String("item_id", item.ID))
	fields, err := encodeFields(item.Fields)
	if err != nil {
		return model.Item{}, err
	}
	tx, err := r.BeginTx(ctx)
	if err != nil {
		r.Log.Error("UpdateItem: begin tx failed", zap.Error(err))
		return model.Item{}, err
	}
	defer r.rollback(tx, "UpdateItem")

	res, err := tx.ExecContext(ctx,
		`UPDATE bug_bash_items
		 SET title=$3, description=$4, team_id=$5, rejected=$6, rejected_by=$7, reject_reason=$8, work_item_id=$9, fields=$10
		 WHERE bug_bash_id=$1 AND id=$2`,
		item.EventID, item.ID, item.Title, item.Description, item.TeamID,
		item.Rejected, item.RejectedBy, item.RejectReason, item.WorkItemID, fields)
	if err != nil {
		r.Log.Error("UpdateItem: update failed", zap.String("item_id", item.ID), zap.Error(err))
		return model.Item{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.Log.Debug("UpdateItem: not found", zap.String("item_id", item.ID))
		return model.Item{}, model.ErrNotFound
	}

	updated, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM bug_bash_items WHERE bug_bash_id=$1 AND id=$2`, item.EventID, item.ID))
	if err != nil {
		r.Log.Error("UpdateItem: reload failed", zap.String("item_id", item.ID), zap.Error(err))
		return model.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		r.Log.Error("UpdateItem: commit failed", zap.String("item_id", item.ID), zap.Error(err))
		return model.Item{}, err
	}
	r.Log.Info("UpdateItem: success", zap.String("item_id", item.ID))
	return updated, nil
}

func (r *Repositories) DeleteItems(ctx context.Context, eventID string, itemIDs []string) error {
	r.Log.Debug("DeleteItems: start", zap.String("event_id", eventID), zap.Int("count", len(itemIDs)))
	tx, err := r.BeginTx(ctx)
	if err != nil {
		r.Log.Error("DeleteItems: begin tx failed", zap.Error(err))
		return err
	}
	defer r.rollback(tx, "DeleteItems")

	for _, id := range itemIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bug_bash_items WHERE bug_bash_id=$1 AND id=$2`, eventID, id); err != nil {
			r.Log.Error("DeleteItems: delete failed", zap.String("item_id", id), zap.Error(err))
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		r.Log.Error("DeleteItems: commit failed", zap.Error(err))
		return err
	}
	r.Log.Info("DeleteItems: success", zap.String("event_id", eventID), zap.Int("count", len(itemIDs)))
	return nil
}
