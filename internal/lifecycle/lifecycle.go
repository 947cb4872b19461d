// Package lifecycle owns the entry, report, and dispute state machines.
// Entry-affecting actions and report-closing actions are structurally
// separate: the report engine has no entry write path at all.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/model"
)

// maxNoteLength bounds every user-supplied reason/note/response string.
const defaultMaxNoteLength = 2000

// requireModerator gates privileged transitions.
func requireModerator(actor auth.Actor) error {
	if !actor.CanModerate() {
		return apperr.New(apperr.CodeAuthRequired, "moderator or admin role required")
	}
	return nil
}

// requireText validates a mandatory user-supplied string.
func requireText(name, value string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = defaultMaxNoteLength
	}
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(map[string]string{name: "must not be empty"})
	}
	if len(value) > maxLen {
		return apperr.Validation(map[string]string{name: fmt.Sprintf("must be at most %d characters", maxLen)})
	}
	return nil
}

// optionalText validates an optional user-supplied string.
func optionalText(name, value string, maxLen int) error {
	if value == "" {
		return nil
	}
	return requireText(name, value, maxLen)
}

// entryState renders the audited snapshot of an entry's coupled states.
func entryState(e *model.FeeEntry) string {
	return fmt.Sprintf("visibility=%s moderation=%s dispute=%s", e.Visibility, e.ModerationStatus, e.DisputeStatus)
}
