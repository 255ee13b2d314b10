package walk

import (
	"fmt"

	"github.com/fertilis/quote-generator/pkg/models"
)

// Walker draws the next value of a bounded symmetric random walk
type Walker struct {
	rand     Rand
	minQuote models.Quote
	maxQuote models.Quote
}

func NewWalker(rnd Rand, minQuote, maxQuote models.Quote) (*Walker, error) {
	if minQuote > maxQuote {
		return nil, fmt.Errorf("walk: min quote %d above max quote %d", minQuote, maxQuote)
	}
	return &Walker{rand: rnd, minQuote: minQuote, maxQuote: maxQuote}, nil
}

// Next steps prev by -1 or +1 with equal probability and saturates at the bounds.
func (w *Walker) Next(prev models.Quote) models.Quote {
	step := 1
	if w.rand.Float64() < 0.5 {
		step = -1
	}

	next := int(prev) + step
	if next > int(w.maxQuote) {
		next = int(w.maxQuote)
	}
	if next < int(w.minQuote) {
		next = int(w.minQuote)
	}
	return models.Quote(next)
}

func (w *Walker) Bounds() (models.Quote, models.Quote) {
	return w.minQuote, w.maxQuote
}
