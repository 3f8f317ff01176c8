package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"proofdeck/api/internal/compress"
	"proofdeck/api/internal/config"
	"proofdeck/api/internal/metrics"
	"proofdeck/api/internal/notify"
	"proofdeck/api/internal/ratelimit"
	"proofdeck/api/internal/search"
	"proofdeck/api/internal/store"
	"proofdeck/api/internal/util"
)

var pdfMagic = []byte("%PDF-")

type dataStore interface {
	GetContainerByProjectTitle(ctx context.Context, projectID, title string) (*store.ReviewContainer, error)
	CreateContainer(ctx context.Context, c store.ReviewContainer) error
	GetContainer(ctx context.Context, id string) (store.ReviewContainer, error)
	GetContainerByToken(ctx context.Context, token string) (store.ReviewContainer, error)
	GetVersion(ctx context.Context, id string) (store.ReviewVersion, error)
	GetVersionByToken(ctx context.Context, token string) (store.ReviewVersion, error)
	ListVersions(ctx context.Context, containerID string) ([]store.ReviewVersion, error)
	InsertVersionSuperseding(ctx context.Context, v store.ReviewVersion, retainUntil time.Time) (store.ReviewVersion, error)
	RecordAction(ctx context.Context, p store.RecordActionParams) (store.ActionResult, error)
	TouchVersionAccess(ctx context.Context, versionID string) error
	IncrementUnread(ctx context.Context, containerID string) error
	ResetUnread(ctx context.Context, containerID string) error
	InsertComment(ctx context.Context, c store.ReviewComment) error
	GetComment(ctx context.Context, id string) (store.ReviewComment, error)
	ListComments(ctx context.Context, versionID string) ([]store.ReviewComment, error)
	ResolveComment(ctx context.Context, id string, resolvedBy *string) (bool, error)
	DeleteComment(ctx context.Context, id string) (bool, error)
	StorageStats(ctx context.Context) (store.StorageStats, error)
	Ping(ctx context.Context) error
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

type compressor interface {
	Compress(ctx context.Context, data []byte) (compress.Result, error)
}

type activitySink interface {
	Record(event notify.Event)
}

type Service struct {
	cfg        config.Config
	store      dataStore
	blob       blobStore
	compressor compressor
	limiter    ratelimit.Limiter
	sink       activitySink
	search     *search.Service
}

func New(cfg config.Config, dataStore dataStore, blob blobStore, compressor compressor, limiter ratelimit.Limiter, sink activitySink, searchService *search.Service) *Service {
	return &Service{
		cfg:        cfg,
		store:      dataStore,
		blob:       blob,
		compressor: compressor,
		limiter:    limiter,
		sink:       sink,
		search:     searchService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type UploadInput struct {
	ProjectID     string
	Title         string
	Data          []byte
	RevisionLimit *int
	ReviewPolicy  string
	UploadedBy    string
}

type UploadOutput struct {
	ContainerID      string  `json:"containerId"`
	VersionID        string  `json:"version_id"`
	VersionNumber    int     `json:"versionNumber"`
	CompressionRatio float64 `json:"compression_ratio"`
	Token            string  `json:"token"`
}

// UploadVersion compresses the incoming PDF, stores the processed artifact
// and registers it as the container's new active version. The raw upload is
// never persisted; the compressed copy is the only stored artifact.
func (s *Service) UploadVersion(ctx context.Context, input UploadInput) (UploadOutput, error) {
	if strings.TrimSpace(input.ProjectID) == "" {
		return UploadOutput{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project_id is required", nil)
	}
	if !bytes.HasPrefix(input.Data, pdfMagic) {
		return UploadOutput{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "file must be a PDF", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Review"
	}

	container, err := s.store.GetContainerByProjectTitle(ctx, input.ProjectID, title)
	if err != nil {
		return UploadOutput{}, err
	}
	if container == nil {
		policy := strings.TrimSpace(input.ReviewPolicy)
		if policy == "" {
			policy = store.PolicySoft
		}
		if policy != store.PolicySoft && policy != store.PolicyStrict {
			return UploadOutput{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review_policy must be 'soft' or 'strict'", nil)
		}
		if input.RevisionLimit != nil && *input.RevisionLimit < 0 {
			return UploadOutput{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "revision_limit must not be negative", nil)
		}
		created := store.ReviewContainer{
			ID:            uuid.NewString(),
			ProjectID:     input.ProjectID,
			Title:         title,
			Status:        store.ContainerInReview,
			ReviewPolicy:  policy,
			RevisionLimit: input.RevisionLimit,
			Token:         util.NewToken(),
			IsTokenActive: true,
		}
		if err := s.store.CreateContainer(ctx, created); err != nil {
			return UploadOutput{}, err
		}
		container = &created
	} else if container.CurrentVersionID != nil &&
		container.Status != store.ContainerChangesRequested &&
		container.ReviewPolicy == store.PolicyStrict &&
		container.RevisionLimit != nil &&
		container.RevisionsUsed >= *container.RevisionLimit {
		// A charged request-changes leaves the container in
		// changes_requested; delivering that paid revision is still allowed.
		// Limit and policy supplied on later uploads are ignored; they only
		// apply when the container is first created.
		return UploadOutput{}, domainError(http.StatusConflict, "CREDIT_EXHAUSTED", "Revision limit reached for this review", map[string]any{
			"revisionsUsed": container.RevisionsUsed,
			"revisionLimit": *container.RevisionLimit,
		})
	}

	result, err := s.compressor.Compress(ctx, input.Data)
	if err != nil {
		metrics.CompressionFailuresTotal.Inc()
		log.Printf("upload: compression failed for project %s title %q: %v", input.ProjectID, title, err)
		return UploadOutput{}, domainError(http.StatusInternalServerError, "PROCESSING_ERROR", "Could not process PDF", nil)
	}

	versionID := uuid.NewString()
	objectKey := store.VersionObjectKey(container.ID, versionID)
	if err := s.blob.Put(ctx, objectKey, result.Data, "application/pdf"); err != nil {
		log.Printf("upload: store artifact for version %s: %v", versionID, err)
		return UploadOutput{}, domainError(http.StatusInternalServerError, "PROCESSING_ERROR", "Could not store PDF", nil)
	}

	version := store.ReviewVersion{
		ID:                  versionID,
		ContainerID:         container.ID,
		ProjectID:           container.ProjectID,
		Token:               util.NewToken(),
		ObjectKey:           &objectKey,
		OriginalSizeBytes:   int64(len(input.Data)),
		CompressedSizeBytes: int64(len(result.Data)),
		CompressionRatio:    result.Ratio,
		CreatedBy:           input.UploadedBy,
	}
	inserted, err := s.store.InsertVersionSuperseding(ctx, version, time.Now().Add(s.cfg.RetentionWindow))
	if err != nil {
		// The transaction rolled back; drop the orphaned object so a failed
		// upload leaves no state behind.
		if removeErr := s.blob.Remove(ctx, objectKey); removeErr != nil {
			log.Printf("upload: cleanup orphaned object %s: %v", objectKey, removeErr)
		}
		return UploadOutput{}, err
	}

	metrics.UploadsTotal.Inc()
	s.sink.Record(notify.Event{
		Type:        notify.EventVersionUploaded,
		ContainerID: container.ID,
		VersionID:   inserted.ID,
		Title:       container.Title,
		Actor:       input.UploadedBy,
		Detail:      fmt.Sprintf("Version %d uploaded (ratio %.3f)", inserted.VersionNumber, inserted.CompressionRatio),
	})

	return UploadOutput{
		ContainerID:      container.ID,
		VersionID:        inserted.ID,
		VersionNumber:    inserted.VersionNumber,
		CompressionRatio: inserted.CompressionRatio,
		Token:            inserted.Token,
	}, nil
}

// resolved pairs a container with the version a public token selects.
type resolved struct {
	container store.ReviewContainer
	version   store.ReviewVersion
}

// resolveToken validates a public token against both scopes. A version
// token pins its version; a container token falls back to the container's
// current version unless an explicit version id narrows it. Revoked tokens
// report LINK_EXPIRED so the UI can distinguish "expired" from "never
// existed".
func (s *Service) resolveToken(ctx context.Context, token, explicitVersionID string) (resolved, error) {
	version, err := s.store.GetVersionByToken(ctx, token)
	if err == nil {
		if !version.IsTokenActive {
			return resolved{}, domainError(http.StatusGone, "LINK_EXPIRED", "This review link has expired", nil)
		}
		container, err := s.store.GetContainer(ctx, version.ContainerID)
		if err != nil {
			return resolved{}, err
		}
		return resolved{container: container, version: version}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return resolved{}, err
	}

	container, err := s.store.GetContainerByToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return resolved{}, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown review link", nil)
	}
	if err != nil {
		return resolved{}, err
	}
	if !container.IsTokenActive {
		return resolved{}, domainError(http.StatusGone, "LINK_EXPIRED", "This review link has expired", nil)
	}

	versionID := explicitVersionID
	if versionID == "" {
		if container.CurrentVersionID == nil {
			return resolved{}, domainError(http.StatusNotFound, "NOT_FOUND", "Review has no versions", nil)
		}
		versionID = *container.CurrentVersionID
	}
	version, err = s.store.GetVersion(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && version.ContainerID != container.ID) {
		return resolved{}, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown version for this review", nil)
	}
	if err != nil {
		return resolved{}, err
	}
	return resolved{container: container, version: version}, nil
}

// PublicReview returns the merged container/version view behind a token.
func (s *Service) PublicReview(ctx context.Context, token, explicitVersionID string) (map[string]any, error) {
	res, err := s.resolveToken(ctx, token, explicitVersionID)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchVersionAccess(ctx, res.version.ID); err != nil {
		log.Printf("public: touch access for version %s: %v", res.version.ID, err)
	}

	comments, err := s.store.ListComments(ctx, res.version.ID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"review":   containerPayload(res.container),
		"version":  versionPayload(res.version),
		"comments": commentPayloads(comments),
	}, nil
}

type ActionInput struct {
	Action     string `json:"action"`
	VersionID  string `json:"versionId"`
	ActorName  string `json:"name"`
	ActorEmail string `json:"email"`
}

// RecordPublicAction applies an approve / request-changes verdict arriving
// through a public link. The sliding rate window guards the endpoint per
// source address; once past the gate, credit accounting is handled entirely
// by the ledger transaction.
func (s *Service) RecordPublicAction(ctx context.Context, token, sourceAddr string, input ActionInput) (map[string]any, error) {
	res, err := s.resolveToken(ctx, token, input.VersionID)
	if err != nil {
		return nil, err
	}

	if input.Action != store.ActionApprove && input.Action != store.ActionRequestChanges {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "action must be 'approve' or 'request-changes'", nil)
	}

	allowed, err := s.limiter.Allow(ctx, sourceAddr)
	if err != nil {
		// Fail open: the limiter protects against abuse, it must not take
		// the review flow down with it.
		log.Printf("public: rate limiter error for %s: %v", sourceAddr, err)
		allowed = true
	}
	if !allowed {
		metrics.RateLimitedTotal.Inc()
		return nil, domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many review actions, try again later", nil)
	}

	result, err := s.store.RecordAction(ctx, store.RecordActionParams{
		ContainerID: res.container.ID,
		VersionID:   res.version.ID,
		Action:      input.Action,
		ActorName:   nilIfBlank(input.ActorName),
		ActorEmail:  nilIfBlank(input.ActorEmail),
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementUnread(ctx, res.container.ID); err != nil {
		log.Printf("public: increment unread for %s: %v", res.container.ID, err)
	}

	metrics.ActionsTotal.WithLabelValues(input.Action).Inc()
	s.sink.Record(notify.Event{
		Type:        notify.EventActionRecorded,
		ContainerID: res.container.ID,
		VersionID:   res.version.ID,
		Title:       res.container.Title,
		Actor:       strings.TrimSpace(input.ActorName),
		Detail:      fmt.Sprintf("Reviewer recorded %q on version %d", input.Action, res.version.VersionNumber),
	})

	return map[string]any{
		"action":        result.Action.ActionType,
		"versionId":     res.version.ID,
		"versionStatus": result.VersionStatus,
		"reviewStatus":  result.ContainerStatus,
		"creditCharged": result.CreditCharged,
		"revisionsUsed": result.RevisionsUsed,
		"revisionLimit": res.container.RevisionLimit,
	}, nil
}

type CommentInput struct {
	VersionID        string  `json:"versionId"`
	Page             int     `json:"page"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	Content          string  `json:"content"`
	AuthorName       string  `json:"name"`
	AuthorEmail      string  `json:"email"`
	ParentID         string  `json:"parentId"`
	ScreenshotBase64 string  `json:"screenshot"`
}

// CreateComment stores a positional annotation. The same shape serves the
// agency and the anonymous reviewer; an embedded base64 screenshot becomes
// its own object referenced by key.
func (s *Service) CreateComment(ctx context.Context, token string, input CommentInput) (map[string]any, error) {
	res, err := s.resolveToken(ctx, token, input.VersionID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if input.Page < 1 {
		input.Page = 1
	}

	var parentID *string
	if trimmed := strings.TrimSpace(input.ParentID); trimmed != "" {
		parent, err := s.store.GetComment(ctx, trimmed)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parent.VersionID != res.version.ID) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown parent comment", nil)
		}
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	commentID := uuid.NewString()
	var screenshotKey *string
	if payload := strings.TrimSpace(input.ScreenshotBase64); payload != "" {
		data, err := decodeScreenshot(payload)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "screenshot must be base64-encoded image data", nil)
		}
		key := store.ScreenshotObjectKey(res.version.ID, commentID)
		if err := s.blob.Put(ctx, key, data, "image/png"); err != nil {
			log.Printf("comment: store screenshot for %s: %v", commentID, err)
			return nil, domainError(http.StatusInternalServerError, "PROCESSING_ERROR", "Could not store screenshot", nil)
		}
		screenshotKey = &key
	}

	comment := store.ReviewComment{
		ID:            commentID,
		VersionID:     res.version.ID,
		ContainerID:   res.container.ID,
		Page:          input.Page,
		X:             input.X,
		Y:             input.Y,
		Width:         input.Width,
		Height:        input.Height,
		Content:       content,
		AuthorName:    nilIfBlank(input.AuthorName),
		AuthorEmail:   nilIfBlank(input.AuthorEmail),
		ScreenshotKey: screenshotKey,
		ParentID:      parentID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		if screenshotKey != nil {
			if removeErr := s.blob.Remove(ctx, *screenshotKey); removeErr != nil {
				log.Printf("comment: cleanup screenshot %s: %v", *screenshotKey, removeErr)
			}
		}
		return nil, err
	}

	if err := s.store.IncrementUnread(ctx, res.container.ID); err != nil {
		log.Printf("comment: increment unread for %s: %v", res.container.ID, err)
	}
	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:          commentID,
			VersionID:   res.version.ID,
			ContainerID: res.container.ID,
			Page:        input.Page,
			Content:     content,
			Author:      strings.TrimSpace(input.AuthorName),
		})
	}
	s.sink.Record(notify.Event{
		Type:        notify.EventCommentAdded,
		ContainerID: res.container.ID,
		VersionID:   res.version.ID,
		Title:       res.container.Title,
		Actor:       strings.TrimSpace(input.AuthorName),
		Detail:      fmt.Sprintf("Comment on page %d of version %d", input.Page, res.version.VersionNumber),
	})

	stored, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		// The insert committed; fall back to what we already know.
		stored = comment
	}
	return commentPayload(stored), nil
}

func (s *Service) ListVersionComments(ctx context.Context, token, explicitVersionID string) (map[string]any, error) {
	res, err := s.resolveToken(ctx, token, explicitVersionID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, res.version.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"versionId": res.version.ID,
		"comments":  commentPayloads(comments),
	}, nil
}

func (s *Service) ResolvePublicComment(ctx context.Context, token, commentID, resolvedBy string) (map[string]any, error) {
	res, err := s.resolveToken(ctx, token, "")
	if err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && comment.ContainerID != res.container.ID) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown comment", nil)
	}
	if err != nil {
		return nil, err
	}

	// Resolving an already-resolved comment is a no-op, not an error.
	if _, err := s.store.ResolveComment(ctx, commentID, nilIfBlank(resolvedBy)); err != nil {
		return nil, err
	}
	updated, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return commentPayload(updated), nil
}

func (s *Service) DeletePublicComment(ctx context.Context, token, commentID string) error {
	res, err := s.resolveToken(ctx, token, "")
	if err != nil {
		return err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && comment.ContainerID != res.container.ID) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Unknown comment", nil)
	}
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Unknown comment", nil)
	}
	if comment.ScreenshotKey != nil {
		if err := s.blob.Remove(ctx, *comment.ScreenshotKey); err != nil {
			log.Printf("comment: remove screenshot %s: %v", *comment.ScreenshotKey, err)
		}
	}
	if s.search != nil {
		s.search.DeleteComment(commentID)
	}
	return nil
}

// GetReview returns the agency-side view and clears the unread counter.
func (s *Service) GetReview(ctx context.Context, containerID string) (map[string]any, error) {
	container, err := s.store.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ResetUnread(ctx, containerID); err != nil {
		log.Printf("review: reset unread for %s: %v", containerID, err)
	}

	versionItems := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		versionItems = append(versionItems, versionPayload(version))
	}
	return map[string]any{
		"review":   containerPayload(container),
		"versions": versionItems,
	}, nil
}

func (s *Service) StorageStatsPayload(ctx context.Context) (map[string]any, error) {
	stats, err := s.store.StorageStats(ctx)
	if err != nil {
		return nil, err
	}

	savings := "0.0%"
	if stats.OriginalBytes > 0 {
		percent := (1 - float64(stats.CompressedBytes)/float64(stats.OriginalBytes)) * 100
		savings = fmt.Sprintf("%.1f%%", percent)
	}
	return map[string]any{
		"originalBytes":   stats.OriginalBytes,
		"compressedBytes": stats.CompressedBytes,
		"versionCount":    stats.VersionCount,
		"reclaimedCount":  stats.ReclaimedCount,
		"savings":         savings,
	}, nil
}

func (s *Service) SearchComments(ctx context.Context, text, containerID string, limit, offset int) map[string]any {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": text}
	}
	response := s.search.Search(ctx, search.Query{
		Text:        text,
		ContainerID: containerID,
		Limit:       limit,
		Offset:      offset,
	})
	return map[string]any{
		"results": response.Results,
		"total":   response.Total,
		"query":   response.Query,
	}
}

func containerPayload(c store.ReviewContainer) map[string]any {
	return map[string]any{
		"id":               c.ID,
		"projectId":        c.ProjectID,
		"title":            c.Title,
		"status":           c.Status,
		"reviewPolicy":     c.ReviewPolicy,
		"revisionLimit":    c.RevisionLimit,
		"revisionsUsed":    c.RevisionsUsed,
		"currentVersionId": c.CurrentVersionID,
		"unreadCount":      c.UnreadCount,
		"createdAt":        c.CreatedAt.Format(time.RFC3339),
		"updatedAt":        c.UpdatedAt.Format(time.RFC3339),
	}
}

func versionPayload(v store.ReviewVersion) map[string]any {
	payload := map[string]any{
		"id":                  v.ID,
		"versionNumber":       v.VersionNumber,
		"status":              v.Status,
		"isActive":            v.IsActive,
		"isPinned":            v.IsPinned,
		"originalSizeBytes":   v.OriginalSizeBytes,
		"compressedSizeBytes": v.CompressedSizeBytes,
		"compressionRatio":    v.CompressionRatio,
		"createdAt":           v.CreatedAt.Format(time.RFC3339),
		"createdBy":           v.CreatedBy,
	}
	if v.RetentionExpiresAt != nil {
		payload["retentionExpiresAt"] = v.RetentionExpiresAt.Format(time.RFC3339)
	}
	if v.ApprovedAt != nil {
		payload["approvedAt"] = v.ApprovedAt.Format(time.RFC3339)
		payload["approvedBy"] = v.ApprovedBy
	}
	return payload
}

func commentPayloads(comments []store.ReviewComment) []map[string]any {
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, commentPayload(comment))
	}
	return items
}

func commentPayload(c store.ReviewComment) map[string]any {
	payload := map[string]any{
		"id":        c.ID,
		"versionId": c.VersionID,
		"page":      c.Page,
		"x":         c.X,
		"y":         c.Y,
		"width":     c.Width,
		"height":    c.Height,
		"content":   c.Content,
		"resolved":  c.Resolved,
		"createdAt": c.CreatedAt.Format(time.RFC3339),
	}
	if c.AuthorName != nil {
		payload["author"] = *c.AuthorName
	}
	if c.ScreenshotKey != nil {
		payload["screenshotKey"] = *c.ScreenshotKey
	}
	if c.ParentID != nil {
		payload["parentId"] = *c.ParentID
	}
	if c.Resolved {
		payload["resolvedBy"] = c.ResolvedBy
		if c.ResolvedAt != nil {
			payload["resolvedAt"] = c.ResolvedAt.Format(time.RFC3339)
		}
	}
	return payload
}

func decodeScreenshot(payload string) ([]byte, error) {
	// Accept both raw base64 and data URLs ("data:image/png;base64,...").
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(payload)
}

func nilIfBlank(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
