package views

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// Render renders c into a string for drift's c.HTML.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// page writes markup and keeps the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

// href writes a sanitized, escaped URL attribute value.
func (p *page) href(u string) {
	p.text(string(templ.URL(u)))
}

func (p *page) component(ctx context.Context, c templ.Component) {
	if p.err == nil && c != nil {
		p.err = c.Render(ctx, p.w)
	}
}

func (p *page) csrf(token string) {
	p.raw(`<input type="hidden" name="csrf_token" value="`)
	p.text(token)
	p.raw(`">`)
}

func component(fn func(ctx context.Context, p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		fn(ctx, p)
		return p.err
	})
}
