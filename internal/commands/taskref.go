package commands

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "rita/internal/errors"
	"rita/internal/feature"
	"rita/internal/journal"
	"rita/internal/service"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = apperrors.Validation("task reference required")

// ParseTaskRef parses a task reference.
//
// Parsing rules:
//  1. All digits (e.g. 12) → scrape task 12
//  2. <letter><digits> (e.g. s12, v3) → s for scrape, v for video
//  3. <feature>/<id> (e.g. video/3) → the named feature
//  4. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(ref string) (feature.Target, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return feature.Target{}, ErrTaskRefRequired
	}

	// Case 1: bare id
	if isAllDigits(ref) {
		return feature.Target{Feature: journal.FeatureScrape, ID: service.TaskID(ref)}, nil
	}

	// Case 2: letter shorthand
	if len(ref) > 1 && isAllDigits(ref[1:]) {
		switch ref[0] {
		case 's':
			return feature.Target{Feature: journal.FeatureScrape, ID: service.TaskID(ref[1:])}, nil
		case 'v':
			return feature.Target{Feature: journal.FeatureVideo, ID: service.TaskID(ref[1:])}, nil
		}
	}

	// Case 3: feature/id
	if name, id, ok := strings.Cut(ref, "/"); ok && isAllDigits(id) {
		f, err := journal.ParseFeature(name)
		if err != nil {
			return feature.Target{}, apperrors.Validation(fmt.Sprintf("invalid task reference: %s", ref))
		}
		return feature.Target{Feature: f, ID: service.TaskID(id)}, nil
	}

	return feature.Target{}, apperrors.Validation(fmt.Sprintf("invalid task reference: %s", ref))
}

// ParseTaskRefs parses every argument, stopping at the first bad one.
func ParseTaskRefs(args []string) ([]feature.Target, error) {
	targets := make([]feature.Target, 0, len(args))
	for _, a := range args {
		t, err := ParseTaskRef(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
