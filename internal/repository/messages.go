package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a stored channel post.
type Message struct {
	MessageID    int64
	ChannelName  string
	ChannelTitle string
	MessageDate  *time.Time
	MessageText  string
	HasMedia     bool
	ImagePath    *string
	Views        int
	Forwards     int
}

// ChannelStats summarizes the posts of a channel.
type ChannelStats struct {
	ChannelName     string
	ChannelTitle    string
	TotalPosts      int
	AvgViews        float64
	PostsWithImages int
	LastPostAt      *time.Time
}

// MessagesRepository reads raw.telegram_messages
type MessagesRepository struct {
	pool *pgxpool.Pool
}

// NewMessagesRepository creates a new messages repository
func NewMessagesRepository(pool *pgxpool.Pool) *MessagesRepository {
	return &MessagesRepository{pool: pool}
}

const messageSelect = `
	SELECT message_id, channel_name, COALESCE(channel_title, ''), message_date, COALESCE(message_text, ''),
	       has_media, image_path, views, forwards
	FROM raw.telegram_messages
`

// ListChannels returns per channel post statistics ordered by post count
func (r *MessagesRepository) ListChannels(ctx context.Context) ([]ChannelStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_name,
		       COALESCE(MAX(channel_title), ''),
		       COUNT(*),
		       COALESCE(AVG(views), 0)::float8,
		       COUNT(CASE WHEN image_path IS NOT NULL THEN 1 END),
		       MAX(message_date)
		FROM raw.telegram_messages
		GROUP BY channel_name
		ORDER BY COUNT(*) DESC, channel_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []ChannelStats
	for rows.Next() {
		var s ChannelStats
		if err := rows.Scan(&s.ChannelName, &s.ChannelTitle, &s.TotalPosts, &s.AvgViews, &s.PostsWithImages, &s.LastPostAt); err != nil {
			return nil, fmt.Errorf("scan channel stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ChannelMessages returns the newest messages of a channel
func (r *MessagesRepository) ChannelMessages(ctx context.Context, channel string, limit int) ([]Message, error) {
	return r.query(ctx, messageSelect+`
		WHERE channel_name = $1
		ORDER BY message_date DESC NULLS LAST, message_id DESC
		LIMIT $2
	`, channel, limit)
}

// SearchMessages returns the newest messages whose text contains query, case insensitive
func (r *MessagesRepository) SearchMessages(ctx context.Context, query string, limit int) ([]Message, error) {
	return r.query(ctx, messageSelect+`
		WHERE message_text ILIKE $1 ESCAPE '\'
		ORDER BY message_date DESC NULLS LAST, message_id DESC
		LIMIT $2
	`, "%"+escapeLike(query)+"%", limit)
}

func (r *MessagesRepository) query(ctx context.Context, sql string, args ...any) ([]Message, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.MessageID, &m.ChannelName, &m.ChannelTitle, &m.MessageDate, &m.MessageText,
			&m.HasMedia, &m.ImagePath, &m.Views, &m.Forwards,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
