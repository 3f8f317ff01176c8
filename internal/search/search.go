// Package search indexes review comments for full-text lookup. Meilisearch
// is used when reachable; Postgres is the fallback so search never depends
// on the index being up.
package search

type Query struct {
	Text        string
	ContainerID string
	Limit       int
	Offset      int
}

type Result struct {
	ID          string `json:"id"`
	VersionID   string `json:"versionId"`
	ContainerID string `json:"containerId"`
	Page        int    `json:"page"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	Snippet     string `json:"snippet,omitempty"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// CommentRecord is the indexed document shape.
type CommentRecord struct {
	ID          string `json:"id"`
	VersionID   string `json:"versionId"`
	ContainerID string `json:"containerId"`
	Page        int    `json:"page"`
	Content     string `json:"content"`
	Author      string `json:"author"`
}
