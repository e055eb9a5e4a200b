package scraper

import (
	"log/slog"
	"time"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// Assembler reads every tracked field out of one product container. It is
// a best-effort reader with no decision authority: records are returned
// unconditionally and the title-presence filter is applied by the caller.
type Assembler struct {
	chains map[string]locator.Chain
	logger *slog.Logger
	now    func() time.Time
}

func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{
		chains: FieldChains(),
		logger: logger.With("component", "assembler"),
		now:    time.Now,
	}
}

// Assemble resolves each field chain against the container and builds the
// record. Missing fields get their display sentinel; a missing title is
// left empty so the caller's invariant check can drop the record.
func (a *Assembler) Assemble(container locator.Scope) models.Product {
	p := models.Product{
		HarvestedAt: a.now(),
		Outcome:     make(map[string]bool, len(a.chains)),
	}

	for _, field := range models.TrackedFields {
		res := a.chains[field].Resolve(container)
		p.Outcome[field] = res.Found
		if !res.Found {
			a.logger.Debug("field chain exhausted", "field", field)
		}

		switch field {
		case models.FieldTitle:
			p.Title = res.Value
		case models.FieldPrice:
			p.Price = res.Value
			if !res.Found {
				p.Price = models.NoPrice
			}
		case models.FieldRating:
			p.Rating = res.Value
			if !res.Found {
				p.Rating = models.NoRating
			}
		case models.FieldImageURL:
			p.ImageURL = res.Value
			if !res.Found {
				p.ImageURL = models.NoImage
			}
		}
	}

	return p
}
