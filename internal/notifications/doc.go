// Package notifications delivers task outcomes to operators via ntfy.
//
// The workflow manager reports terminal task failures, and completions when
// notifications.on_complete is set. Without a configured topic NewService
// returns a no-op implementation so callers never need to nil-check.
package notifications
