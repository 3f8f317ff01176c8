package store

import "errors"

// ErrCreditExhausted is returned when a strict-policy container has no
// revision credits left for an action that would charge one.
var ErrCreditExhausted = errors.New("revision limit reached")

// ErrVersionClosed is returned when the target version is no longer open
// for reviewer actions (superseded, approved or reclaimed).
var ErrVersionClosed = errors.New("version is not open for review")

// ShouldCharge decides whether recording an action consumes a revision
// credit. Only the first request-changes against a version charges; repeats
// are free so a reviewer retrying a failed submission is not double-billed.
// It returns ErrCreditExhausted when the charge would exceed a strict limit.
//
// Must be evaluated inside the same transaction as the ledger insert;
// priorRequests is the count of request-changes rows already recorded for
// the version under the container row lock.
func ShouldCharge(action string, priorRequests int, policy string, revisionsUsed int, revisionLimit *int) (bool, error) {
	if action != ActionRequestChanges {
		return false, nil
	}
	if priorRequests > 0 {
		return false, nil
	}
	if policy == PolicyStrict && revisionLimit != nil && revisionsUsed >= *revisionLimit {
		return false, ErrCreditExhausted
	}
	return true, nil
}

// ActionAllowed reports whether a version can still receive reviewer
// actions. Superseded, reclaimed and already-approved versions are closed;
// an open changes_requested version may still be approved or re-requested.
func ActionAllowed(versionStatus string) bool {
	return versionStatus == VersionActive || versionStatus == VersionChangesRequested
}
