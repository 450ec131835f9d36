package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scrape collects the fields a browser would submit for form. Controls
// without a name are skipped. Inputs are scanned first, then selects, then
// textareas; a later control with a name seen earlier overwrites it.
//
//   - checkbox and radio inputs contribute only when checked, with their
//     value or "on" when the value attribute is missing
//   - other inputs contribute their value attribute, or ""
//   - a select contributes its selected option, else its first option; the
//     option's value attribute is used, else its trimmed text. A select
//     without options contributes nothing
//   - a textarea contributes its text content
func Scrape(form *goquery.Selection) FormFields {
	fields := make(FormFields)

	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.AttrOr("type", "text"))) {
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); !checked {
				return
			}
			fields[name] = in.AttrOr("value", "on")
		default:
			fields[name] = in.AttrOr("value", "")
		}
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		options := sel.Find("option")
		if options.Length() == 0 {
			return
		}
		opt := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
			_, selected := o.Attr("selected")
			return selected
		}).First()
		if opt.Length() == 0 {
			opt = options.First()
		}
		if v, has := opt.Attr("value"); has {
			fields[name] = v
		} else {
			fields[name] = strings.TrimSpace(opt.Text())
		}
	})

	form.Find("textarea").Each(func(_ int, ta *goquery.Selection) {
		name, ok := ta.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = ta.Text()
	})

	return fields
}
