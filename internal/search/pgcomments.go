package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgComments searches review comments directly in Postgres.
type PgComments struct {
	db *sql.DB
}

func NewPgComments(db *sql.DB) *PgComments {
	return &PgComments{db: db}
}

func (p *PgComments) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	args := []any{"%" + q.Text + "%"}
	filter := ""
	if q.ContainerID != "" {
		filter = " AND container_id = $2"
		args = append(args, q.ContainerID)
	}
	args = append(args, limit, q.Offset)

	query := fmt.Sprintf(`
		SELECT id, version_id, container_id, page, content,
			COALESCE(author_name, ''),
			COUNT(*) OVER ()
		FROM review_comments
		WHERE content ILIKE $1%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, filter, len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search comments: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.VersionID, &r.ContainerID, &r.Page, &r.Content, &r.Author, &total); err != nil {
			return nil, 0, fmt.Errorf("scan comment hit: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
