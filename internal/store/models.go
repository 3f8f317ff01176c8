package store

import "time"

// Container statuses follow the reviewer's last recorded verdict.
const (
	ContainerInReview         = "in_review"
	ContainerChangesRequested = "changes_requested"
	ContainerApproved         = "approved"
)

const (
	VersionActive           = "active"
	VersionApproved         = "approved"
	VersionChangesRequested = "changes_requested"
	VersionSuperseded       = "superseded"
	VersionFileDeleted      = "file_deleted"
)

const (
	PolicySoft   = "soft"
	PolicyStrict = "strict"
)

const (
	ActionApprove        = "approve"
	ActionRequestChanges = "request-changes"
)

// ReviewContainer is one feedback thread on a project deliverable. A project
// may hold several containers, keyed by title.
type ReviewContainer struct {
	ID               string
	ProjectID        string
	Title            string
	Status           string
	ReviewPolicy     string
	RevisionLimit    *int
	RevisionsUsed    int
	CurrentVersionID *string
	UnreadCount      int
	Token            string
	IsTokenActive    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// ReviewVersion is one uploaded, compressed artifact within a container.
type ReviewVersion struct {
	ID                  string
	ContainerID         string
	ProjectID           string
	VersionNumber       int
	Status              string
	IsActive            bool
	IsPinned            bool
	Token               string
	IsTokenActive       bool
	ObjectKey           *string
	OriginalSizeBytes   int64
	CompressedSizeBytes int64
	CompressionRatio    float64
	RetentionExpiresAt  *time.Time
	LastAccessedAt      *time.Time
	ApprovedAt          *time.Time
	ApprovedBy          *string
	CreatedAt           time.Time
	CreatedBy           string
}

// ReviewAction is an append-only ledger row. Rows are never updated or
// deleted; credit accounting is derived from first occurrence per version.
type ReviewAction struct {
	ID          int64
	ContainerID string
	VersionID   string
	ActionType  string
	ActorName   *string
	ActorEmail  *string
	CreatedAt   time.Time
}

// ReviewComment is a positional annotation on a version page.
type ReviewComment struct {
	ID            string
	VersionID     string
	ContainerID   string
	Page          int
	X             float64
	Y             float64
	Width         float64
	Height        float64
	Content       string
	AuthorName    *string
	AuthorEmail   *string
	ScreenshotKey *string
	Resolved      bool
	ResolvedBy    *string
	ResolvedAt    *time.Time
	ParentID      *string
	CreatedAt     time.Time
}

type StorageStats struct {
	OriginalBytes   int64
	CompressedBytes int64
	VersionCount    int
	ReclaimedCount  int
}

// ActionResult reports what a recorded action changed.
type ActionResult struct {
	Action          ReviewAction
	CreditCharged   bool
	VersionStatus   string
	ContainerStatus string
	RevisionsUsed   int
}
