package portal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/luispater/feeOptOut/internal/utils"
	"golang.org/x/net/html"
)

const (
	OptOutButtonSelector = SubmitInputSelector + `[value="` + OptOutButtonValue + `"]`
)

var (
	feeTableMatcher = cascadia.MustCompile(FeeTableSelector)
	rowMatcher      = cascadia.MustCompile("tr")
	cellMatcher     = cascadia.MustCompile("td")
	anchorMatcher   = cascadia.MustCompile("a")
)

// Document is a parsed snapshot of the tab: its location and DOM at one instant.
type Document struct {
	URL string
	doc *goquery.Document
}

func ParseDocument(pageURL, body string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}
	return &Document{
		URL: pageURL,
		doc: goquery.NewDocumentFromNode(root),
	}, nil
}

// Classify decides which workflow step the snapshot shows. The fee table wins
// over the URL; the confirmation pages are only recognised by URL.
func (d *Document) Classify() Kind {
	if table := d.feeTable(); table.Length() > 0 && hasOptLink(table) {
		return KindMain
	}

	switch {
	case strings.Contains(d.URL, ConfirmURLFragment):
		return KindConfirm
	case strings.Contains(d.URL, FinalURLFragment):
		return KindFinal
	case strings.Contains(d.URL, CompleteURLFragment):
		return KindComplete
	}
	return KindUnknown
}

// Fees lists the table rows that carry an opt-out link, in row order.
func (d *Document) Fees() []Fee {
	fees := make([]Fee, 0)
	table := d.feeTable()
	if table.Length() == 0 {
		return fees
	}

	table.FindMatcher(rowMatcher).Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.FindMatcher(cellMatcher)
		if cells.Length() < minFeeCells {
			return
		}
		name := utils.NormalizeText(cells.First().Text())
		if name == "" || rowOptLink(row) == nil {
			return
		}
		fees = append(fees, Fee{Name: name, RowIndex: i})
	})
	return fees
}

// OptOutLinkSelector resolves the fee's row by index and returns a selector
// addressing exactly that row's opt-out anchor.
func (d *Document) OptOutLinkSelector(fee Fee) (string, error) {
	table := d.feeTable()
	if table.Length() == 0 {
		return "", ErrTableNotFound
	}

	rows := table.FindMatcher(rowMatcher)
	if fee.RowIndex < 0 || fee.RowIndex >= rows.Length() {
		return "", fmt.Errorf("%w: %s at row %d", ErrRowNotFound, fee.Name, fee.RowIndex)
	}

	row := rows.Eq(fee.RowIndex)
	if name := utils.NormalizeText(row.FindMatcher(cellMatcher).First().Text()); name != fee.Name {
		return "", fmt.Errorf("%w: row %d reads %q, expected %q", ErrRowChanged, fee.RowIndex, name, fee.Name)
	}

	link := rowOptLink(row)
	if link == nil {
		return "", fmt.Errorf("%w: %s at row %d", ErrLinkNotFound, fee.Name, fee.RowIndex)
	}
	return NodePath(link.Get(0)), nil
}

// Has reports whether any element matches selector.
func (d *Document) Has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

func (d *Document) feeTable() *goquery.Selection {
	return d.doc.FindMatcher(feeTableMatcher).First()
}

func isOptLink(a *goquery.Selection) bool {
	return utils.ContainsFold(utils.NormalizeText(a.Text()), optLinkText)
}

func hasOptLink(table *goquery.Selection) bool {
	found := false
	table.FindMatcher(anchorMatcher).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = isOptLink(a)
		return !found
	})
	return found
}

// rowOptLink returns the first cell anchor of the row that reads like an
// opt-out link, or nil.
func rowOptLink(row *goquery.Selection) *goquery.Selection {
	var link *goquery.Selection
	row.FindMatcher(cellMatcher).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		a := cell.FindMatcher(anchorMatcher).First()
		if a.Length() > 0 && isOptLink(a) {
			link = a
			return false
		}
		return true
	})
	return link
}

// NodePath builds a child-index selector from the document root down to n, so
// the browser clicks the same node that was inspected here.
func NodePath(n *html.Node) string {
	parts := make([]string, 0)
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Parent == nil || n.Parent.Type == html.DocumentNode {
			parts = append(parts, n.Data)
			break
		}
		idx := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, idx))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
