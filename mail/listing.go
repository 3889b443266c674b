package mail

import (
	"context"

	"github.com/ptgott/e2ekit/browser"
	"github.com/ptgott/e2ekit/dom"
)

// listing describes where an inbox UI shows its rows. The container's inner
// HTML is read in one round trip, wrapped back into open and close so that
// the row selectors still apply, then parsed locally.
type listing struct {
	container string
	open      string
	close     string
	rows      string
	from      string
	subject   string
}

func (l listing) read(ctx context.Context, p *browser.Page) ([]Message, error) {
	markup, err := p.GetHTML(ctx, l.container)
	if err != nil {
		return nil, err
	}
	return l.parse(markup)
}

// parse extracts the rows of a container snapshot. A row without a sender
// or subject cell gets an empty string for it.
func (l listing) parse(markup string) ([]Message, error) {
	doc := dom.Parse(l.open + markup + l.close)
	rows, err := dom.All(doc, l.rows)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		var m Message
		if n, err := dom.First(row, l.from); err == nil {
			m.From = dom.Text(n)
		}
		if n, err := dom.First(row, l.subject); err == nil {
			m.Subject = dom.Text(n)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
