/* participants.go
 * Contains the logic for resolving user-typed participant labels against a contest's two
 * participants. Users type "navi" and mean "Natus Vincere", so exact matching alone is
 * not enough
 * Authors: Zachary Bower
 */

package logic

import (
	"fmt"
	"strings"

	"pickem-bot/api/shared"
	"pickem-bot/api/store"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchParticipant resolves user input to one of the contest's two participant labels.
// Matching is case-insensitive with fuzzy fallback; an exact (folded) match always wins.
// It returns the canonical label, or shared.ErrInvalidInput when the input matches
// neither participant.
func MatchParticipant(input string, contest store.Contest) (string, error) {
	// Strip the quote styles chat clients substitute in
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\"", "")
	input = strings.ReplaceAll(input, "“", "")
	input = strings.ReplaceAll(input, "”", "")
	if input == "" {
		return "", fmt.Errorf("%w: participant name cannot be empty", shared.ErrInvalidInput)
	}

	labels := []string{contest.ParticipantA, contest.ParticipantB}

	// Convert to lowercase for better matching
	lookup := make(map[string]string, len(labels))
	var labelsLower []string
	for _, name := range labels {
		lower := strings.ToLower(name)
		lookup[lower] = name
		labelsLower = append(labelsLower, lower)
	}

	lowerInput := strings.ToLower(input)
	if canonical, ok := lookup[lowerInput]; ok {
		return canonical, nil
	}

	fuzzyResults := fuzzy.RankFind(lowerInput, labelsLower)
	if len(fuzzyResults) == 0 {
		return "", fmt.Errorf("%w: %q does not match %s or %s", shared.ErrInvalidInput, input, contest.ParticipantA, contest.ParticipantB)
	}

	// Take the best ranked match when the input is a fragment of both labels
	best := fuzzyResults[0]
	for _, r := range fuzzyResults[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return lookup[best.Target], nil
}
