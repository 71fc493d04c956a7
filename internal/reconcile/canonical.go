package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/planloom/planloom-backend/internal/data/graph"
)

// Canonical identifier shapes. Historical writers produced several
// formats for the same logical entity; canonicalization folds them to
// one deduplication key. The rules are first-match-wins; an identifier
// matching none of them is its own canonical form and is never merged
// with anything else.
var (
	epicCanonicalRe = regexp.MustCompile(`^e(\d+)$`)
	epicLegacyRe    = regexp.MustCompile(`^epic_(\d+)(?:_.*)?$`)
	epicStampedRe   = regexp.MustCompile(`^\d{4}_\d{2}_e(\d+)$`)

	sprintCanonicalRe = regexp.MustCompile(`^e(\d+)_s(\d+)([a-z])?$`)
	sprintAdhocRe     = regexp.MustCompile(`^adhoc_(\d{6})_s(\d+)$`)
	sprintLegacyRe    = regexp.MustCompile(`^e(\d+)_sprint(\d+)$`)
	sprintStampedRe   = regexp.MustCompile(`^\d{4}_\d{2}_e(\d+)_s(\d+)([a-z])?$`)

	taskCanonicalRe    = regexp.MustCompile(`^e(\d+)_s(\d+)_t(\d+)$`)
	taskLegacyRe       = regexp.MustCompile(`^e(\d+)_s(\d+)_task(\d+)$`)
	taskSprintLegacyRe = regexp.MustCompile(`^e(\d+)_sprint(\d+)_task(\d+)$`)
	taskAdhocRe        = regexp.MustCompile(`^adhoc_(\d{6})_s(\d+)_t(\d+)$`)
	taskStampedRe      = regexp.MustCompile(`^\d{4}_\d{2}_e(\d+)_s(\d+)_t(\d+)$`)
)

// CanonicalID maps a raw structural-entity identifier to its canonical
// form. Pure, total, and idempotent: feeding the output back in returns
// it unchanged.
func CanonicalID(raw string, t graph.EntityType) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	id = strings.ReplaceAll(id, "-", "_")

	switch t {
	case graph.EntityEpic:
		return canonicalEpicID(id)
	case graph.EntitySprint:
		return canonicalSprintID(id)
	case graph.EntityTask:
		return canonicalTaskID(id)
	default:
		return id
	}
}

func canonicalEpicID(id string) string {
	if m := epicCanonicalRe.FindStringSubmatch(id); m != nil {
		return "e" + pad(m[1], 3)
	}
	if m := epicLegacyRe.FindStringSubmatch(id); m != nil {
		return "e" + pad(m[1], 3)
	}
	if m := epicStampedRe.FindStringSubmatch(id); m != nil {
		return "e" + pad(m[1], 3)
	}
	return id
}

func canonicalSprintID(id string) string {
	if m := sprintCanonicalRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s%s", pad(m[1], 3), pad(m[2], 2), m[3])
	}
	if m := sprintAdhocRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("adhoc_%s_s%s", m[1], pad(m[2], 2))
	}
	if m := sprintLegacyRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s", pad(m[1], 3), pad(m[2], 2))
	}
	if m := sprintStampedRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s%s", pad(m[1], 3), pad(m[2], 2), m[3])
	}
	return id
}

func canonicalTaskID(id string) string {
	if m := taskCanonicalRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s_t%s", pad(m[1], 3), pad(m[2], 2), pad(m[3], 2))
	}
	if m := taskLegacyRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s_t%s", pad(m[1], 3), pad(m[2], 2), pad(m[3], 2))
	}
	if m := taskSprintLegacyRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s_t%s", pad(m[1], 3), pad(m[2], 2), pad(m[3], 2))
	}
	if m := taskAdhocRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("adhoc_%s_s%s_t%s", m[1], pad(m[2], 2), pad(m[3], 2))
	}
	if m := taskStampedRe.FindStringSubmatch(id); m != nil {
		return fmt.Sprintf("e%s_s%s_t%s", pad(m[1], 3), pad(m[2], 2), pad(m[3], 2))
	}
	return id
}

// pad zero-pads a numeric string to at least width digits, dropping any
// existing leading zeros first so "009" and "9" agree.
func pad(num string, width int) string {
	n, err := strconv.Atoi(num)
	if err != nil {
		return num
	}
	return fmt.Sprintf("%0*d", width, n)
}
