package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

const postColumns = 10

// PutPosts inserts all posts with one multi-row statement. Existing URIs are
// left untouched, including their status.
func (r *Repository) PutPosts(ctx context.Context, posts []domain.PaperPost) error {
	if len(posts) == 0 {
		return nil
	}

	query, args := buildInsertPosts(posts)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StoreError{Op: "put posts", Err: err}
	}
	return nil
}

func buildInsertPosts(posts []domain.PaperPost) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO posts
		(uri, cid, author_did, created_at, created_at_day, indexed_at,
		 search_text, reply_root, reply_parent, status)
		VALUES `)

	args := make([]any, 0, len(posts)*postColumns)
	for i, p := range posts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := 0; c < postColumns; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*postColumns+c+1)
		}
		b.WriteString(")")

		status := p.Status
		if status == "" {
			status = domain.PostStatusActive
		}
		args = append(args,
			p.URI, p.CID, p.AuthorDID, p.CreatedAt, p.CreatedAtDay, p.IndexedAt,
			p.SearchText, p.ReplyRoot, p.ReplyParent, string(status),
		)
	}
	b.WriteString(" ON CONFLICT (uri) DO NOTHING")
	return b.String(), args
}

// MarkPostsDeleted flips every listed post to deleted in one statement.
func (r *Repository) MarkPostsDeleted(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = $1 WHERE uri = ANY($2)`,
		string(domain.PostStatusDeleted), pq.Array(uris),
	)
	if err != nil {
		return &domain.StoreError{Op: "mark posts deleted", Err: err}
	}
	return nil
}

// ListRecentByAuthor returns the author's newest active posts.
func (r *Repository) ListRecentByAuthor(ctx context.Context, authorDID string, limit int) ([]domain.PaperPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, cid, author_did, created_at, created_at_day, indexed_at,
		       search_text, reply_root, reply_parent, status
		FROM posts
		WHERE author_did = $1 AND status = $2
		ORDER BY created_at DESC, uri DESC
		LIMIT $3`,
		authorDID, string(domain.PostStatusActive), limit,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "list posts by author", Err: err}
	}
	defer rows.Close()

	var posts []domain.PaperPost
	for rows.Next() {
		var (
			p      domain.PaperPost
			status string
		)
		err := rows.Scan(
			&p.URI, &p.CID, &p.AuthorDID, &p.CreatedAt, &p.CreatedAtDay, &p.IndexedAt,
			&p.SearchText, &p.ReplyRoot, &p.ReplyParent, &status,
		)
		if err != nil {
			return nil, &domain.StoreError{Op: "scan post", Err: err}
		}
		p.Status = domain.PostStatus(status)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "iterate posts", Err: err}
	}
	return posts, nil
}
