package web

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field is one named control of a form
type Field struct {
	Name    string
	Type    string
	Value   string
	Checked bool
}

// Form is a snapshot of an HTML form
type Form struct {
	Action    string
	Method    string
	Inputs    []Field
	Textareas []Field
	Buttons   []Field
}

func parseForm(s *goquery.Selection) *Form {
	f := &Form{
		Action: s.AttrOr("action", ""),
		Method: strings.ToUpper(s.AttrOr("method", "GET")),
	}

	s.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		typ := strings.ToLower(in.AttrOr("type", "text"))
		field := Field{
			Name:    in.AttrOr("name", ""),
			Type:    typ,
			Value:   in.AttrOr("value", ""),
			Checked: in.Is("[checked]"),
		}
		if typ == "submit" || typ == "image" {
			f.Buttons = append(f.Buttons, field)
			return
		}
		f.Inputs = append(f.Inputs, field)
	})
	s.Find("textarea[name]").Each(func(_ int, ta *goquery.Selection) {
		f.Textareas = append(f.Textareas, Field{Name: ta.AttrOr("name", ""), Type: "textarea", Value: ta.Text()})
	})
	s.Find("button[name]").Each(func(_ int, b *goquery.Selection) {
		f.Buttons = append(f.Buttons, Field{Name: b.AttrOr("name", ""), Type: "submit", Value: b.AttrOr("value", "")})
	})
	return f
}

// HasField reports whether the form has an input, textarea or button named name
func (f *Form) HasField(name string) bool {
	for _, group := range [][]Field{f.Inputs, f.Textareas, f.Buttons} {
		for _, fld := range group {
			if fld.Name == name {
				return true
			}
		}
	}
	return false
}

// Count returns how many controls share name
func (f *Form) Count(name string) int {
	n := 0
	for _, group := range [][]Field{f.Inputs, f.Textareas, f.Buttons} {
		for _, fld := range group {
			if fld.Name == name {
				n++
			}
		}
	}
	return n
}

// Values builds the submission a browser would send: default values, every
// checkbox named checkAll ticked, overrides applied, and the button named
// submitName as the activated control.
func (f *Form) Values(overrides map[string]string, checkAll, submitName string) url.Values {
	v := url.Values{}
	for _, in := range f.Inputs {
		switch in.Type {
		case "checkbox", "radio":
			if in.Checked || (checkAll != "" && in.Name == checkAll) {
				value := in.Value
				if value == "" {
					value = "on"
				}
				v.Add(in.Name, value)
			}
		case "file", "reset":
		default:
			v.Add(in.Name, in.Value)
		}
	}
	for _, ta := range f.Textareas {
		v.Add(ta.Name, ta.Value)
	}
	for name, value := range overrides {
		v.Set(name, value)
	}
	if submitName != "" {
		for _, b := range f.Buttons {
			if b.Name == submitName {
				v.Set(b.Name, b.Value)
				break
			}
		}
	}
	return v
}
