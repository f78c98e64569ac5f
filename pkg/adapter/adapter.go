package adapter

import (
	"context"

	"github.com/zen-systems/crisisgate/pkg/vote"
)

// Adapter defines the interface for text classifier backends. The
// decision engine treats each backend as an opaque scoring function: a
// Classify call returns either a non-empty ranked label list or an error,
// never an ambiguous empty success.
type Adapter interface {
	// Classify scores a message, returning labels sorted by descending score.
	Classify(ctx context.Context, model string, message string) ([]vote.LabelScore, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}
