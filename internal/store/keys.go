package store

import "fmt"

// The store owns object-key layout so every writer and the sweeper agree on
// where a version's bytes live.

func VersionObjectKey(containerID, versionID string) string {
	return fmt.Sprintf("reviews/%s/%s.pdf", containerID, versionID)
}

func ScreenshotObjectKey(versionID, commentID string) string {
	return fmt.Sprintf("screenshots/%s/%s.png", versionID, commentID)
}
