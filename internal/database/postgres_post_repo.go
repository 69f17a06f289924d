package database

import (
	"context"
	"fmt"
	"time"

	"tgfeed/internal/database/models"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

// UpsertPost inserts the post or overwrites the row with the same
// (channel_username, message_id).
func (s *PostgresStore) UpsertPost(ctx context.Context, post *models.RawPost) error {
	if post.IngestedAt.IsZero() {
		post.IngestedAt = time.Now().UTC()
	}
	refs, err := json.Marshal(post.MediaRefs)
	if err != nil {
		return fmt.Errorf("failed to encode media refs of %s/%d: %w", post.Channel, post.MessageID, err)
	}
	var raw any
	if len(post.Raw) > 0 {
		raw = post.Raw
	}
	var groupID any
	if post.GroupID != "" {
		groupID = post.GroupID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table(postsCollectionName)+` (
		     channel_username, message_id, posted_at, edited_at, text, permalink,
		     media_group_id, media_refs, raw, ingested_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (channel_username, message_id) DO UPDATE SET
		     posted_at      = EXCLUDED.posted_at,
		     edited_at      = EXCLUDED.edited_at,
		     text           = EXCLUDED.text,
		     permalink      = EXCLUDED.permalink,
		     media_group_id = EXCLUDED.media_group_id,
		     media_refs     = EXCLUDED.media_refs,
		     raw            = EXCLUDED.raw,
		     ingested_at    = EXCLUDED.ingested_at`,
		post.Channel, post.MessageID, post.PostedAt, post.EditedAt, post.Text, post.Permalink,
		groupID, refs, raw, post.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s/%d: %w", post.Channel, post.MessageID, err)
	}
	return nil
}

// ListPosts returns up to q.Limit rows of q.Channel, newest first.
// Rows imported without media_group_id/media_refs fall back to the raw payload.
func (s *PostgresStore) ListPosts(ctx context.Context, q PostQuery) ([]models.RawPost, error) {
	const columns = `channel_username, message_id, posted_at, edited_at,
		COALESCE(text, ''), COALESCE(permalink, ''),
		COALESCE(media_group_id, raw->>'media_group_id', raw->>'grouped_id', ''),
		media_refs, raw, ingested_at`
	posts := s.table(postsCollectionName)

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if q.Before == nil {
		rows, err = s.pool.Query(ctx,
			`SELECT `+columns+`
			   FROM `+posts+`
			  WHERE channel_username = $1
			  ORDER BY posted_at DESC, message_id DESC
			  LIMIT $2`,
			q.Channel, limit,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+columns+`
			   FROM `+posts+`
			  WHERE channel_username = $1 AND posted_at < $2
			  ORDER BY posted_at DESC, message_id DESC
			  LIMIT $3`,
			q.Channel, q.Before.UTC(), limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for %s: %w", q.Channel, err)
	}
	defer rows.Close()

	out := make([]models.RawPost, 0, limit)
	for rows.Next() {
		var (
			p    models.RawPost
			refs []byte
		)
		if err := rows.Scan(
			&p.Channel,
			&p.MessageID,
			&p.PostedAt,
			&p.EditedAt,
			&p.Text,
			&p.Permalink,
			&p.GroupID,
			&refs,
			&p.Raw,
			&p.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		if len(refs) > 0 && string(refs) != "null" {
			if err := json.Unmarshal(refs, &p.MediaRefs); err != nil {
				return nil, fmt.Errorf("failed to decode media refs of %s/%d: %w", p.Channel, p.MessageID, err)
			}
		}
		normalizeStoredPost(&p)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts for %s: %w", q.Channel, err)
	}
	return out, nil
}
