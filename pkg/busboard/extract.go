package busboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fahrplan/internal/domain"
)

// Selectors locate the departure table inside the board markup
type Selectors struct {
	Table  string
	Row    string
	Time   string
	Route  string
	Status string
}

// DefaultSelectors match the markup of the operator's departure monitor
var DefaultSelectors = Selectors{
	Table:  "table",
	Row:    "tr",
	Time:   "td.time",
	Route:  ".line",
	Status: ".realtime",
}

// Extract reads the departure rows from the board markup
func Extract(r io.Reader) ([]domain.RawRow, error) {
	return DefaultSelectors.Extract(r)
}

func (s Selectors) Extract(r io.Reader) ([]domain.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading markup: %v", domain.ErrExtraction, err)
	}
	return s.extractDocument(doc.Selection)
}

func (s Selectors) extractDocument(doc *goquery.Selection) (rows []domain.RawRow, err error) {
	table := doc.Find(s.Table).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no departure table (%s)", domain.ErrExtraction, s.Table)
	}

	rows = make([]domain.RawRow, 0)

	// NOTE: an empty table is fine, there are no departures late at night.
	table.Find(s.Row).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true // header row
		}

		timeCell := tr.Find(s.Time).First()
		if timeCell.Length() == 0 {
			err = fmt.Errorf("%w: row %d: missing time cell (%s)", domain.ErrExtraction, i, s.Time)
			return false
		}

		route := tr.Find(s.Route).First()
		if route.Length() == 0 {
			err = fmt.Errorf("%w: row %d: missing route label (%s)", domain.ErrExtraction, i, s.Route)
			return false
		}

		rows = append(rows, domain.RawRow{
			Time:      cleanText(timeCell.Text()),
			Route:     cleanText(route.Text()),
			Status:    cleanText(tr.Find(s.Status).First().Text()),
			Direction: cleanText(cells.Last().Text()),
		})
		return true
	})

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// cleanText collapses the whitespace the monitor puts around cell content
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
