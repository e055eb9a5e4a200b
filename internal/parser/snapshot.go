package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
)

// Snapshot is a parsed, static copy of a results page. It resolves the
// same locator chains the live session uses, which makes it both the
// offline harvest path (re-extract from a saved page without a browser)
// and the fixture backend for chain tests.
type Snapshot struct {
	doc *goquery.Document
}

func NewSnapshot(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// Scope returns the whole document as a locator scope.
func (s *Snapshot) Scope() locator.Scope {
	return selectionScope{sel: s.doc.Selection}
}

// Containers enumerates product containers with the chain's first
// matching candidate selector, mirroring the live session's discipline.
func (s *Snapshot) Containers(chain locator.Chain) (string, []locator.Scope) {
	for _, sel := range chain.Selectors() {
		matches := s.doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		scopes := make([]locator.Scope, 0, matches.Length())
		matches.Each(func(_ int, m *goquery.Selection) {
			scopes = append(scopes, selectionScope{sel: m})
		})
		return sel, scopes
	}
	return "", nil
}

// Harvest assembles product records from the snapshot, applying the same
// title-presence filter as a live run.
func (s *Snapshot) Harvest(logger *slog.Logger) ([]models.Product, scraper.Diagnostics) {
	diag := scraper.Diagnostics{FieldMisses: make(map[string]int)}
	assembler := scraper.NewAssembler(logger)

	selector, containers := s.Containers(scraper.ContainerChain())
	diag.ContainerSelector = selector
	diag.ContainersFound = len(containers)

	products := make([]models.Product, 0, len(containers))
	for _, container := range containers {
		p := assembler.Assemble(container)
		for field, found := range p.Outcome {
			if !found {
				diag.FieldMisses[field]++
			}
		}
		if !p.HasTitle() {
			diag.DroppedNoTitle++
			continue
		}
		products = append(products, p)
	}
	diag.Emitted = len(products)
	return products, diag
}

// selectionScope adapts a goquery selection to the locator interfaces.
type selectionScope struct {
	sel *goquery.Selection
}

func (s selectionScope) Find(selector string) (locator.Element, error) {
	match := s.sel.Find(selector).First()
	if match.Length() == 0 {
		return nil, locator.ErrNoElement
	}
	return selectionElement{sel: match}, nil
}

type selectionElement struct {
	sel *goquery.Selection
}

func (e selectionElement) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e selectionElement) Attribute(name string) (string, error) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", locator.ErrNoAttribute
	}
	return v, nil
}
