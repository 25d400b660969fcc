package web

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "favthanker/pkg/errors"
)

// Page is a fetched document: its raw source plus a queryable DOM
type Page struct {
	URL  *url.URL
	body string
	doc  *goquery.Document
}

// NewPage parses body fetched from u
func NewPage(u *url.URL, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Url = u
	return &Page{URL: u, body: string(body), doc: doc}, nil
}

// Body returns the raw response source
func (p *Page) Body() string {
	return p.body
}

// Anchor is a link on a page
type Anchor struct {
	Href string
	Text string
}

// AnchorByHref returns the first anchor whose href equals href exactly
func (p *Page) AnchorByHref(href string) (*Anchor, error) {
	var found *Anchor
	p.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("href"); v == href {
			found = &Anchor{Href: v, Text: strings.TrimSpace(s.Text())}
			return false
		}
		return true
	})
	if found == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, "anchor", href)
	}
	return found, nil
}

// ElementByID returns the element with the given id
func (p *Page) ElementByID(id string) (*goquery.Selection, error) {
	sel := p.doc.Find("#" + id)
	if sel.Length() == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, "element", id)
	}
	return sel.First(), nil
}

// ImageSrcByID returns the absolute src of the image with the given id
func (p *Page) ImageSrcByID(id string) (string, error) {
	el, err := p.ElementByID(id)
	if err != nil {
		return "", err
	}
	src, ok := el.Attr("src")
	if !ok || src == "" {
		return "", errs.New(errs.ErrorTypeNotFound, "image src", id)
	}
	return p.Resolve(src), nil
}

// Has reports whether any element matches selector
func (p *Page) Has(selector string) bool {
	return p.doc.Find(selector).Length() > 0
}

// Resolve makes ref absolute relative to the page URL
func (p *Page) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || p.URL == nil {
		return ref
	}
	return p.URL.ResolveReference(u).String()
}

// Forms returns every form on the page in document order
func (p *Page) Forms() []*Form {
	var forms []*Form
	p.doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		forms = append(forms, parseForm(s))
	})
	return forms
}

// FormByIndex returns the i-th form; negative indexes count from the end
func (p *Page) FormByIndex(i int) (*Form, error) {
	forms := p.Forms()
	if i < 0 {
		i += len(forms)
	}
	if i < 0 || i >= len(forms) {
		return nil, errs.New(errs.ErrorTypeNotFound, "form", fmt.Sprintf("index %d of %d", i, len(forms)))
	}
	return forms[i], nil
}

// FormWithField returns the first form containing a field named name
func (p *Page) FormWithField(name string) (*Form, error) {
	for _, f := range p.Forms() {
		if f.HasField(name) {
			return f, nil
		}
	}
	return nil, errs.New(errs.ErrorTypeNotFound, "form with field", name)
}
