package portal

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form is an HTML form found on the current page: its resolved action URL
// and the input fields it carries (hidden anti-CSRF tokens included).
type Form struct {
	Name   string
	Action string
	Fields map[string]string
}

// FindForm locates the named form in the page markup. The action attribute
// is resolved against pageURL; a form without an action posts back to the
// page itself.
func FindForm(html, pageURL, name string) (*Form, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}

	var form *Form
	doc.Find("form").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		formName, _ := sel.Attr("name")
		if formName != name {
			return true
		}

		fields := map[string]string{}
		sel.Find("input").Each(func(_ int, input *goquery.Selection) {
			fieldName, ok := input.Attr("name")
			if !ok || fieldName == "" {
				return
			}
			value, _ := input.Attr("value")
			fields[fieldName] = value
		})

		action, _ := sel.Attr("action")
		form = &Form{
			Name:   name,
			Action: resolveAction(pageURL, action),
			Fields: fields,
		}
		return false
	})

	return form, form != nil
}

// HasForms reports whether the page contains any form at all.
func HasForms(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find("form").Length() > 0
}

// Submission merges the form's own field values with the supplied ones,
// which win on conflict.
func (f *Form) Submission(values map[string]string) map[string]string {
	merged := make(map[string]string, len(f.Fields)+len(values))
	for name, value := range f.Fields {
		merged[name] = value
	}
	for name, value := range values {
		merged[name] = value
	}
	return merged
}

func resolveAction(pageURL, action string) string {
	if action == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return action
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return base.ResolveReference(ref).String()
}
