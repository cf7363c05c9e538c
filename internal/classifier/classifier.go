// Package classifier decides whether an order can be made: it extracts the
// flavour identifier from an order payload, checks it against the menu's
// allow-set and flags pineapple requests.
package classifier

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/petrijr/pizzaflow/pkg/api"
)

// DefaultFlavors is the allow-set used when no menu is configured.
var DefaultFlavors = []string{"pepperoni", "cheese", "margherita", "vegetarian"}

// pineappleMarkers are matched as substrings of the normalized identifier.
var pineappleMarkers = []string{"pineapple", "hawaiian"}

// Classifier checks flavour identifiers against an allow-set.
// It is safe for concurrent use; the allow-set is fixed at construction.
type Classifier struct {
	allowed map[string]struct{}
	logger  *slog.Logger
}

// New returns a Classifier for the given allow-set. Entries are normalized
// the same way identifiers are (trimmed, lower-cased); empty entries are
// ignored. A nil logger discards classifier logs.
func New(flavors []string, logger *slog.Logger) *Classifier {
	allowed := make(map[string]struct{}, len(flavors))
	for _, f := range flavors {
		if n := normalize(f); n != "" {
			allowed[n] = struct{}{}
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{allowed: allowed, logger: logger}
}

// Flavors returns the normalized allow-set in sorted order.
func (c *Classifier) Flavors() []string {
	out := make([]string, 0, len(c.allowed))
	for f := range c.allowed {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Classify returns the verdict for a flavour identifier. The pineapple check
// runs first and does not depend on the allow-set, so "hawaiian" is flagged
// even if a menu happens to list it. Classify never fails; the error return
// lets it serve as an api.ClassifyFunc.
func (c *Classifier) Classify(ctx context.Context, flavour string) (api.ClassificationResult, error) {
	id := normalize(flavour)

	pineapple := containsPineapple(id)
	_, recognized := c.allowed[id]

	c.logger.DebugContext(ctx, "flavour_classified",
		slog.String("flavour", id),
		slog.Bool("contains_pineapple", pineapple),
		slog.Bool("flavor_recognized", recognized),
	)

	return api.ClassificationResult{
		ContainsPineapple: pineapple,
		FlavorRecognized:  recognized,
	}, nil
}

// ClassifyPayload extracts the flavour from payload and classifies it.
func (c *Classifier) ClassifyPayload(ctx context.Context, payload []byte) (api.ClassificationResult, error) {
	flavour, err := ExtractFlavour(payload)
	if err != nil {
		return api.ClassificationResult{}, err
	}
	return c.Classify(ctx, flavour)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsPineapple(id string) bool {
	for _, m := range pineappleMarkers {
		if strings.Contains(id, m) {
			return true
		}
	}
	return false
}
