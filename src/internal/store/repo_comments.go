package store

import (
	"context"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/google/uuid"

	"go.uber.org/zap"
)

func (r *Repositories) ListComments(ctx context.Context, itemID string) ([]model.Comment, error) {
	r.Log.Debug("ListComments: start", zap.String("item_id", itemID))
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, item_id, author, body, created_at FROM bug_bash_comments WHERE item_id=$1 ORDER BY created_at, id`, itemID)
	if err != nil {
		r.Log.Error("ListComments: query failed", zap.Error(err))
		return nil, err
	}
	defer r.closeRows(rows, "ListComments")

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Author, &c.Text, &c.CreatedDate); err != nil {
			r.Log.Error("ListComments: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error("ListComments: rows error", zap.Error(err))
		return nil, err
	}
	r.Log.Debug("ListComments: success", zap.Int("count", len(out)))
	return out, nil
}

func (r *Repositories) CreateComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	c.ID = uuid.New().String()
	r.Log.Debug("CreateComment: start", zap.String("item_id", c.ItemID))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO bug_bash_comments(id, item_id, author, body, created_at) VALUES($1,$2,$3,$4,$5)`,
		c.ID, c.ItemID, c.Author, c.Text, c.CreatedDate)
	if err != nil {
		if isMissingParent(err) {
			return model.Comment{}, model.ErrNotFound
		}
		r.Log.Error("CreateComment: insert failed", zap.String("item_id", c.ItemID), zap.Error(err))
		return model.Comment{}, err
	}
	r.Log.Info("CreateComment: success", zap.String("comment_id", c.ID))
	return c, nil
}
