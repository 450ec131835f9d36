package portal

import (
	"net/url"
	"sort"
)

// FormFields is the submittable name/value set of one HTML form. It is
// created fresh from each scraped page, adjusted by the flow that scraped it
// and consumed by exactly one POST.
type FormFields map[string]string

// Has reports whether the field was present in the scraped form.
func (f FormFields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// FirstPresent returns the first candidate name present in the set, or
// fallback when none is.
func (f FormFields) FirstPresent(candidates []string, fallback string) string {
	for _, c := range candidates {
		if f.Has(c) {
			return c
		}
	}
	return fallback
}

// Encode returns the set as an application/x-www-form-urlencoded body.
func (f FormFields) Encode() string {
	v := make(url.Values, len(f))
	for k, val := range f {
		v.Set(k, val)
	}
	return v.Encode()
}

// Names returns the field names in sorted order.
func (f FormFields) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OverrideMode controls how an Override interacts with a scraped value.
type OverrideMode int

const (
	// Replace always writes Value.
	Replace OverrideMode = iota
	// KeepScraped writes Value only when the form did not carry the field.
	KeepScraped
	// ReplaceIfPresentOrSet writes Value when the form carried the field or
	// Value is non-empty. An absent field with an empty Value stays absent.
	ReplaceIfPresentOrSet
)

// Override is one caller-supplied field value.
type Override struct {
	Key   string
	Value string
	Mode  OverrideMode
}

// Apply writes overrides into the set in order. Presence for the conditional
// modes is judged against the set as scraped, before any override in the
// same call ran; when two overrides name the same key, the later one wins.
func (f FormFields) Apply(overrides ...Override) {
	scraped := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		scraped[o.Key] = f.Has(o.Key)
	}
	for _, o := range overrides {
		switch o.Mode {
		case KeepScraped:
			if !scraped[o.Key] {
				f[o.Key] = o.Value
			}
		case ReplaceIfPresentOrSet:
			if scraped[o.Key] || o.Value != "" {
				f[o.Key] = o.Value
			}
		default:
			f[o.Key] = o.Value
		}
	}
}
