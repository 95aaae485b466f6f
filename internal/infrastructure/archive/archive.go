// Package archive stores snapshots of weeks closed by rollover.
//
// Backends lay snapshots out as "<user>/week-<number>.json" so a user's
// history can be listed by prefix.
package archive

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidUserID is returned for user ids that cannot be used as a path segment.
var ErrInvalidUserID = errors.New("invalid user id for archive path")

const (
	weekPrefix = "week-"
	weekSuffix = ".json"
)

// UserPrefix returns the path prefix holding every snapshot of userID.
func UserPrefix(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return userID + "/", nil
}

// ObjectName returns the path of one week's snapshot.
func ObjectName(userID string, week int) (string, error) {
	prefix, err := UserPrefix(userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%d%s", prefix, weekPrefix, week, weekSuffix), nil
}

// ParseWeek extracts the week number from a snapshot file or object base name.
func ParseWeek(name string) (int, bool) {
	if !strings.HasPrefix(name, weekPrefix) || !strings.HasSuffix(name, weekSuffix) {
		return 0, false
	}
	week, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, weekPrefix), weekSuffix))
	if err != nil {
		return 0, false
	}
	return week, true
}
