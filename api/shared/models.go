/* models.go
 * This file contains the structs and value types that are shared between sub packages
 * Authors: Zachary Bower
 */

package shared

import (
	"fmt"
	"strings"
)

type User struct {
	UserID   string
	Username string
}

// Window selects the time range a leaderboard is computed over
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowAllTime Window = "all_time"
)

// ParseWindow converts user input into a Window. An empty string defaults to
// all_time so `$leaderboard` with no argument keeps working.
// It returns the Window, or ErrInvalidInput if the input is not a known window name.
func ParseWindow(input string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "all", "alltime", "all_time":
		return WindowAllTime, nil
	case "daily", "day", "today":
		return WindowDaily, nil
	case "weekly", "week":
		return WindowWeekly, nil
	default:
		return "", fmt.Errorf("%w: unknown leaderboard window %q", ErrInvalidInput, input)
	}
}
