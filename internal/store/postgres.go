package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const containerColumns = `
	id, project_id, title, status, review_policy, revision_limit,
	revisions_used, current_version_id, unread_count, token,
	is_token_active, created_at, updated_at, deleted_at
`

func scanContainer(row interface{ Scan(...any) error }) (ReviewContainer, error) {
	var c ReviewContainer
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.Title, &c.Status, &c.ReviewPolicy,
		&c.RevisionLimit, &c.RevisionsUsed, &c.CurrentVersionID,
		&c.UnreadCount, &c.Token, &c.IsTokenActive,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	return c, err
}

const versionColumns = `
	id, container_id, project_id, version_number, status, is_active,
	is_pinned, token, is_token_active, object_key, original_size_bytes,
	compressed_size_bytes, compression_ratio, retention_expires_at,
	last_accessed_at, approved_at, approved_by, created_at, created_by
`

func scanVersion(row interface{ Scan(...any) error }) (ReviewVersion, error) {
	var v ReviewVersion
	err := row.Scan(
		&v.ID, &v.ContainerID, &v.ProjectID, &v.VersionNumber, &v.Status,
		&v.IsActive, &v.IsPinned, &v.Token, &v.IsTokenActive, &v.ObjectKey,
		&v.OriginalSizeBytes, &v.CompressedSizeBytes, &v.CompressionRatio,
		&v.RetentionExpiresAt, &v.LastAccessedAt, &v.ApprovedAt,
		&v.ApprovedBy, &v.CreatedAt, &v.CreatedBy,
	)
	return v, err
}

// GetContainerByProjectTitle returns nil without error when no container
// exists yet for the project/title pair.
func (s *PostgresStore) GetContainerByProjectTitle(ctx context.Context, projectID, title string) (*ReviewContainer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+containerColumns+`
		FROM review_containers
		WHERE project_id=$1 AND title=$2 AND deleted_at IS NULL
	`, projectID, title)
	container, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup container: %w", err)
	}
	return &container, nil
}

func (s *PostgresStore) CreateContainer(ctx context.Context, c ReviewContainer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_containers (
			id, project_id, title, status, review_policy, revision_limit,
			revisions_used, unread_count, token, is_token_active
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, TRUE)
	`, c.ID, c.ProjectID, c.Title, c.Status, c.ReviewPolicy, c.RevisionLimit, c.Token)
	if err != nil {
		return fmt.Errorf("insert container: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetContainer(ctx context.Context, id string) (ReviewContainer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+containerColumns+`
		FROM review_containers
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	return scanContainer(row)
}

func (s *PostgresStore) GetContainerByToken(ctx context.Context, token string) (ReviewContainer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+containerColumns+`
		FROM review_containers
		WHERE token=$1 AND deleted_at IS NULL
	`, token)
	return scanContainer(row)
}

func (s *PostgresStore) GetVersion(ctx context.Context, id string) (ReviewVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM review_versions
		WHERE id=$1
	`, id)
	return scanVersion(row)
}

func (s *PostgresStore) GetVersionByToken(ctx context.Context, token string) (ReviewVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM review_versions
		WHERE token=$1
	`, token)
	return scanVersion(row)
}

func (s *PostgresStore) ListVersions(ctx context.Context, containerID string) ([]ReviewVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM review_versions
		WHERE container_id=$1
		ORDER BY version_number DESC
	`, containerID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []ReviewVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// InsertVersionSuperseding atomically demotes the container's active version
// (stamping its retention clock), inserts the new version with the next
// version number and repoints current_version_id. The container row lock
// serializes concurrent uploads so version numbers stay gapless.
func (s *PostgresStore) InsertVersionSuperseding(ctx context.Context, v ReviewVersion, retainUntil time.Time) (ReviewVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReviewVersion{}, fmt.Errorf("begin upload tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var containerID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM review_containers
		WHERE id=$1 AND deleted_at IS NULL
		FOR UPDATE
	`, v.ContainerID).Scan(&containerID)
	if err != nil {
		return ReviewVersion{}, fmt.Errorf("lock container: %w", err)
	}

	// An approved version keeps its terminal status when a newer upload
	// lands; only the active flag and the retention clock change.
	if _, err := tx.ExecContext(ctx, `
		UPDATE review_versions
		SET is_active = FALSE,
			retention_expires_at = $2,
			status = CASE WHEN status IN ('active', 'changes_requested')
				THEN 'superseded' ELSE status END
		WHERE container_id = $1 AND is_active = TRUE
	`, v.ContainerID, retainUntil); err != nil {
		return ReviewVersion{}, fmt.Errorf("supersede active version: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM review_versions WHERE container_id = $1
	`, v.ContainerID).Scan(&v.VersionNumber); err != nil {
		return ReviewVersion{}, fmt.Errorf("next version number: %w", err)
	}

	v.Status = VersionActive
	v.IsActive = true
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO review_versions (
			id, container_id, project_id, version_number, status, is_active,
			is_pinned, token, is_token_active, object_key,
			original_size_bytes, compressed_size_bytes, compression_ratio,
			created_by
		) VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, $6, TRUE, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, v.ID, v.ContainerID, v.ProjectID, v.VersionNumber, v.Status,
		v.Token, v.ObjectKey, v.OriginalSizeBytes, v.CompressedSizeBytes,
		v.CompressionRatio, v.CreatedBy,
	).Scan(&v.CreatedAt); err != nil {
		return ReviewVersion{}, fmt.Errorf("insert version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE review_containers
		SET current_version_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, v.ContainerID, v.ID, ContainerInReview); err != nil {
		return ReviewVersion{}, fmt.Errorf("repoint current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ReviewVersion{}, fmt.Errorf("commit upload tx: %w", err)
	}
	return v, nil
}

type RecordActionParams struct {
	ContainerID string
	VersionID   string
	Action      string
	ActorName   *string
	ActorEmail  *string
}

// RecordAction appends a ledger row and applies the resulting status and
// credit changes in one transaction. The first-occurrence credit check runs
// under the container row lock so two concurrent request-changes cannot
// both charge.
func (s *PostgresStore) RecordAction(ctx context.Context, p RecordActionParams) (ActionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ActionResult{}, fmt.Errorf("begin action tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	container, err := scanContainer(tx.QueryRowContext(ctx, `
		SELECT `+containerColumns+`
		FROM review_containers
		WHERE id=$1 AND deleted_at IS NULL
		FOR UPDATE
	`, p.ContainerID))
	if err != nil {
		return ActionResult{}, err
	}

	version, err := scanVersion(tx.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM review_versions
		WHERE id=$1 AND container_id=$2
	`, p.VersionID, p.ContainerID))
	if err != nil {
		return ActionResult{}, err
	}
	if !ActionAllowed(version.Status) {
		return ActionResult{}, ErrVersionClosed
	}

	var priorRequests int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_actions
		WHERE version_id=$1 AND action_type=$2
	`, p.VersionID, ActionRequestChanges).Scan(&priorRequests); err != nil {
		return ActionResult{}, fmt.Errorf("count prior requests: %w", err)
	}

	charge, err := ShouldCharge(p.Action, priorRequests, container.ReviewPolicy, container.RevisionsUsed, container.RevisionLimit)
	if err != nil {
		return ActionResult{}, err
	}

	result := ActionResult{CreditCharged: charge}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO review_actions (container_id, version_id, action_type, actor_name, actor_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.ContainerID, p.VersionID, p.Action, p.ActorName, p.ActorEmail,
	).Scan(&result.Action.ID, &result.Action.CreatedAt); err != nil {
		return ActionResult{}, fmt.Errorf("insert action: %w", err)
	}
	result.Action.ContainerID = p.ContainerID
	result.Action.VersionID = p.VersionID
	result.Action.ActionType = p.Action
	result.Action.ActorName = p.ActorName
	result.Action.ActorEmail = p.ActorEmail

	switch p.Action {
	case ActionApprove:
		result.VersionStatus = VersionApproved
		result.ContainerStatus = ContainerApproved
		if _, err := tx.ExecContext(ctx, `
			UPDATE review_versions
			SET status=$2, approved_at=NOW(), approved_by=$3
			WHERE id=$1
		`, p.VersionID, VersionApproved, p.ActorName); err != nil {
			return ActionResult{}, fmt.Errorf("approve version: %w", err)
		}
	case ActionRequestChanges:
		result.VersionStatus = VersionChangesRequested
		result.ContainerStatus = ContainerChangesRequested
		if _, err := tx.ExecContext(ctx, `
			UPDATE review_versions SET status=$2 WHERE id=$1
		`, p.VersionID, VersionChangesRequested); err != nil {
			return ActionResult{}, fmt.Errorf("request changes on version: %w", err)
		}
	default:
		return ActionResult{}, fmt.Errorf("unknown action type %q", p.Action)
	}

	result.RevisionsUsed = container.RevisionsUsed
	if charge {
		result.RevisionsUsed++
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE review_containers
		SET status=$2, revisions_used=$3, updated_at=NOW()
		WHERE id=$1
	`, p.ContainerID, result.ContainerStatus, result.RevisionsUsed); err != nil {
		return ActionResult{}, fmt.Errorf("update container after action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ActionResult{}, fmt.Errorf("commit action tx: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) TouchVersionAccess(ctx context.Context, versionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_versions SET last_accessed_at=NOW() WHERE id=$1
	`, versionID)
	if err != nil {
		return fmt.Errorf("touch version access: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementUnread(ctx context.Context, containerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_containers SET unread_count = unread_count + 1 WHERE id=$1
	`, containerID)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResetUnread(ctx context.Context, containerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_containers SET unread_count = 0 WHERE id=$1
	`, containerID)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

const commentColumns = `
	id, version_id, container_id, page, x, y, width, height, content,
	author_name, author_email, screenshot_key, resolved, resolved_by,
	resolved_at, parent_id, created_at
`

func scanComment(row interface{ Scan(...any) error }) (ReviewComment, error) {
	var c ReviewComment
	err := row.Scan(
		&c.ID, &c.VersionID, &c.ContainerID, &c.Page, &c.X, &c.Y,
		&c.Width, &c.Height, &c.Content, &c.AuthorName, &c.AuthorEmail,
		&c.ScreenshotKey, &c.Resolved, &c.ResolvedBy, &c.ResolvedAt,
		&c.ParentID, &c.CreatedAt,
	)
	return c, err
}

func (s *PostgresStore) InsertComment(ctx context.Context, c ReviewComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_comments (
			id, version_id, container_id, page, x, y, width, height,
			content, author_name, author_email, screenshot_key, parent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.VersionID, c.ContainerID, c.Page, c.X, c.Y, c.Width, c.Height,
		c.Content, c.AuthorName, c.AuthorEmail, c.ScreenshotKey, c.ParentID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (ReviewComment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM review_comments WHERE id=$1
	`, id)
	return scanComment(row)
}

func (s *PostgresStore) ListComments(ctx context.Context, versionID string) ([]ReviewComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM review_comments
		WHERE version_id=$1
		ORDER BY created_at ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []ReviewComment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) ResolveComment(ctx context.Context, id string, resolvedBy *string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_comments
		SET resolved=TRUE, resolved_by=$2, resolved_at=NOW()
		WHERE id=$1 AND resolved=FALSE
	`, id, resolvedBy)
	if err != nil {
		return false, fmt.Errorf("resolve comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_comments WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeactivateExpiredApprovedTokens revokes public links on approved versions
// older than the cutoff. A single guarded UPDATE keeps the pass idempotent.
func (s *PostgresStore) DeactivateExpiredApprovedTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_versions
		SET is_token_active = FALSE
		WHERE status = $1 AND is_token_active = TRUE
			AND approved_at IS NOT NULL AND approved_at < $2
	`, VersionApproved, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate approved tokens: %w", err)
	}
	return res.RowsAffected()
}

// ListReclaimable returns versions whose file is eligible for deletion:
// inactive, unpinned, not already reclaimed, retention clock elapsed.
func (s *PostgresStore) ListReclaimable(ctx context.Context, now time.Time) ([]ReviewVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM review_versions
		WHERE is_active = FALSE
			AND is_pinned = FALSE
			AND status <> $1
			AND retention_expires_at IS NOT NULL
			AND retention_expires_at < $2
		ORDER BY retention_expires_at ASC
	`, VersionFileDeleted, now)
	if err != nil {
		return nil, fmt.Errorf("list reclaimable versions: %w", err)
	}
	defer rows.Close()

	var versions []ReviewVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reclaimable version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// MarkFileDeleted nulls the file pointers and finalizes the version. The
// WHERE clause re-checks eligibility so overlapping sweeper runs are a
// no-op rather than an error.
func (s *PostgresStore) MarkFileDeleted(ctx context.Context, versionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_versions
		SET status = $2, object_key = NULL, is_token_active = FALSE
		WHERE id = $1
			AND is_active = FALSE
			AND is_pinned = FALSE
			AND status <> $2
	`, versionID, VersionFileDeleted)
	if err != nil {
		return false, fmt.Errorf("mark file deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) StorageStats(ctx context.Context) (StorageStats, error) {
	var stats StorageStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(original_size_bytes), 0),
			COALESCE(SUM(compressed_size_bytes) FILTER (WHERE status <> $1), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1)
		FROM review_versions
	`, VersionFileDeleted).Scan(
		&stats.OriginalBytes, &stats.CompressedBytes,
		&stats.VersionCount, &stats.ReclaimedCount,
	)
	if err != nil {
		return StorageStats{}, fmt.Errorf("storage stats: %w", err)
	}
	return stats, nil
}
