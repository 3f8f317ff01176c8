package app

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"proofdeck/api/internal/compress"
	"proofdeck/api/internal/config"
	"proofdeck/api/internal/notify"
	"proofdeck/api/internal/store"
)

// memStore is an in-memory dataStore with the same transactional semantics
// as the Postgres implementation: single active version per container,
// monotonic version numbers, first-request-changes-only credit charging.
type memStore struct {
	mu         sync.Mutex
	containers map[string]*store.ReviewContainer
	versions   map[string]*store.ReviewVersion
	actions    []store.ReviewAction
	comments   map[string]*store.ReviewComment
	now        func() time.Time

	pingErr error
}

func newMemStore() *memStore {
	return &memStore{
		containers: make(map[string]*store.ReviewContainer),
		versions:   make(map[string]*store.ReviewVersion),
		comments:   make(map[string]*store.ReviewComment),
		now:        time.Now,
	}
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) GetContainerByProjectTitle(_ context.Context, projectID, title string) (*store.ReviewContainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.containers {
		if c.ProjectID == projectID && c.Title == title && c.DeletedAt == nil {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateContainer(_ context.Context, c store.ReviewContainer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.containers[c.ID] = &c
	return nil
}

func (m *memStore) GetContainer(_ context.Context, id string) (store.ReviewContainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok || c.DeletedAt != nil {
		return store.ReviewContainer{}, sql.ErrNoRows
	}
	return *c, nil
}

func (m *memStore) GetContainerByToken(_ context.Context, token string) (store.ReviewContainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.containers {
		if c.Token == token && c.DeletedAt == nil {
			return *c, nil
		}
	}
	return store.ReviewContainer{}, sql.ErrNoRows
}

func (m *memStore) GetVersion(_ context.Context, id string) (store.ReviewVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return store.ReviewVersion{}, sql.ErrNoRows
	}
	return *v, nil
}

func (m *memStore) GetVersionByToken(_ context.Context, token string) (store.ReviewVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions {
		if v.Token == token {
			return *v, nil
		}
	}
	return store.ReviewVersion{}, sql.ErrNoRows
}

func (m *memStore) ListVersions(_ context.Context, containerID string) ([]store.ReviewVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ReviewVersion
	for _, v := range m.versions {
		if v.ContainerID == containerID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (m *memStore) InsertVersionSuperseding(_ context.Context, v store.ReviewVersion, retainUntil time.Time) (store.ReviewVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	container, ok := m.containers[v.ContainerID]
	if !ok {
		return store.ReviewVersion{}, sql.ErrNoRows
	}

	maxNumber := 0
	for _, existing := range m.versions {
		if existing.ContainerID != v.ContainerID {
			continue
		}
		if existing.VersionNumber > maxNumber {
			maxNumber = existing.VersionNumber
		}
		if existing.IsActive {
			existing.IsActive = false
			expires := retainUntil
			existing.RetentionExpiresAt = &expires
			if existing.Status == store.VersionActive || existing.Status == store.VersionChangesRequested {
				existing.Status = store.VersionSuperseded
			}
		}
	}

	v.VersionNumber = maxNumber + 1
	v.Status = store.VersionActive
	v.IsActive = true
	v.IsTokenActive = true
	v.CreatedAt = m.now()
	m.versions[v.ID] = &v

	container.CurrentVersionID = &v.ID
	container.Status = store.ContainerInReview
	container.UpdatedAt = m.now()
	return v, nil
}

func (m *memStore) RecordAction(_ context.Context, p store.RecordActionParams) (store.ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	container, ok := m.containers[p.ContainerID]
	if !ok {
		return store.ActionResult{}, sql.ErrNoRows
	}
	version, ok := m.versions[p.VersionID]
	if !ok || version.ContainerID != p.ContainerID {
		return store.ActionResult{}, sql.ErrNoRows
	}
	if !store.ActionAllowed(version.Status) {
		return store.ActionResult{}, store.ErrVersionClosed
	}

	priorRequests := 0
	for _, a := range m.actions {
		if a.VersionID == p.VersionID && a.ActionType == store.ActionRequestChanges {
			priorRequests++
		}
	}
	charge, err := store.ShouldCharge(p.Action, priorRequests, container.ReviewPolicy, container.RevisionsUsed, container.RevisionLimit)
	if err != nil {
		return store.ActionResult{}, err
	}

	now := m.now()
	action := store.ReviewAction{
		ID:          int64(len(m.actions) + 1),
		ContainerID: p.ContainerID,
		VersionID:   p.VersionID,
		ActionType:  p.Action,
		ActorName:   p.ActorName,
		ActorEmail:  p.ActorEmail,
		CreatedAt:   now,
	}
	m.actions = append(m.actions, action)

	if p.Action == store.ActionApprove {
		version.Status = store.VersionApproved
		version.ApprovedAt = &now
		version.ApprovedBy = p.ActorName
		container.Status = store.ContainerApproved
	} else {
		version.Status = store.VersionChangesRequested
		container.Status = store.ContainerChangesRequested
	}
	if charge {
		container.RevisionsUsed++
	}
	container.UpdatedAt = now

	return store.ActionResult{
		Action:          action,
		CreditCharged:   charge,
		VersionStatus:   version.Status,
		ContainerStatus: container.Status,
		RevisionsUsed:   container.RevisionsUsed,
	}, nil
}

func (m *memStore) TouchVersionAccess(_ context.Context, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[versionID]; ok {
		now := m.now()
		v.LastAccessedAt = &now
	}
	return nil
}

func (m *memStore) IncrementUnread(_ context.Context, containerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[containerID]; ok {
		c.UnreadCount++
	}
	return nil
}

func (m *memStore) ResetUnread(_ context.Context, containerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[containerID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

func (m *memStore) InsertComment(_ context.Context, c store.ReviewComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = m.now()
	m.comments[c.ID] = &c
	return nil
}

func (m *memStore) GetComment(_ context.Context, id string) (store.ReviewComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return store.ReviewComment{}, sql.ErrNoRows
	}
	return *c, nil
}

func (m *memStore) ListComments(_ context.Context, versionID string) ([]store.ReviewComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ReviewComment
	for _, c := range m.comments {
		if c.VersionID == versionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ResolveComment(_ context.Context, id string, resolvedBy *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return false, nil
	}
	if c.Resolved {
		return false, nil
	}
	now := m.now()
	c.Resolved = true
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = &now
	return true, nil
}

func (m *memStore) DeleteComment(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return false, nil
	}
	delete(m.comments, id)
	return true, nil
}

func (m *memStore) DeactivateExpiredApprovedTokens(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, v := range m.versions {
		if v.Status == store.VersionApproved && v.IsTokenActive && v.ApprovedAt != nil && v.ApprovedAt.Before(cutoff) {
			v.IsTokenActive = false
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListReclaimable(_ context.Context, now time.Time) ([]store.ReviewVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ReviewVersion
	for _, v := range m.versions {
		if !v.IsActive && !v.IsPinned && v.Status != store.VersionFileDeleted &&
			v.RetentionExpiresAt != nil && v.RetentionExpiresAt.Before(now) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *memStore) MarkFileDeleted(_ context.Context, versionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[versionID]
	if !ok || v.IsActive || v.IsPinned || v.Status == store.VersionFileDeleted || v.RetentionExpiresAt == nil {
		return false, nil
	}
	v.Status = store.VersionFileDeleted
	v.ObjectKey = nil
	return true, nil
}

func (m *memStore) StorageStats(context.Context) (store.StorageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats store.StorageStats
	for _, v := range m.versions {
		stats.VersionCount++
		stats.OriginalBytes += v.OriginalSizeBytes
		if v.Status == store.VersionFileDeleted {
			stats.ReclaimedCount++
		} else {
			stats.CompressedBytes += v.CompressedSizeBytes
		}
	}
	return stats, nil
}

// fakeBlob records puts and removes by key.
type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) Put(_ context.Context, key string, data []byte, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBlob) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlob) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *fakeBlob) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// fakeCompressor halves the input by default.
type fakeCompressor struct {
	err   error
	ratio float64
}

func (c *fakeCompressor) Compress(_ context.Context, data []byte) (compress.Result, error) {
	if c.err != nil {
		return compress.Result{}, c.err
	}
	ratio := c.ratio
	if ratio == 0 {
		ratio = 0.5
	}
	size := int(float64(len(data)) * ratio)
	if size < 1 {
		size = 1
	}
	out := make([]byte, size)
	copy(out, data)
	return compress.Result{Data: out, Ratio: float64(size) / float64(len(data))}, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) {
	l.calls++
	return l.allow, l.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Record(event notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) typesSeen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		RetentionWindow: 90 * 24 * time.Hour,
		TokenWindow:     30 * 24 * time.Hour,
		MaxUploadBytes:  50 * 1024 * 1024,
	}
}

func newTestService(ms *memStore, blob *fakeBlob) *Service {
	return New(testConfig(), ms, blob, &fakeCompressor{}, &fakeLimiter{allow: true}, &recordingSink{}, nil)
}

func pdfBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "%PDF-1.7\n")
	for i := len("%PDF-1.7\n"); i < size; i++ {
		data[i] = byte('a' + i%26)
	}
	return data
}

func mustUpload(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, svc *Service, projectID, title string) UploadOutput {
	t.Helper()
	out, err := svc.UploadVersion(context.Background(), UploadInput{
		ProjectID: projectID,
		Title:     title,
		Data:      pdfBytes(4096),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return out
}
