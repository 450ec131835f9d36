// Package plans maps human plan names to the portal's numeric plan codes.
//
// Lookup is exact on a normalized key: case, repeated whitespace and spacing
// around hyphens are ignored, so "Home Fast", "home fast" and "HOMEFAST" all
// resolve to the same entry. There is no fuzzy or prefix matching.
package plans

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"planswitch/internal/types"
)

// Entry is one canonical plan: the official display name and its code.
type Entry struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

// CodeString returns the code in the string form expected by RunConfig.
func (e Entry) CodeString() string {
	return strconv.Itoa(e.Code)
}

// catalog is the fixed, ordered plan list. Order is significant: List returns
// entries in this order.
var catalog = []Entry{
	{Name: "Home Basic", Code: 2661},
	{Name: "Home Standard", Code: 2663},
	{Name: "Home Plus", Code: 2665},
	{Name: "Home Fast", Code: 2669},
	{Name: "Home Superfast", Code: 2671},
	{Name: "Home Ultrafast", Code: 2673},
	{Name: "Business Fast", Code: 2681},
	{Name: "Business Ultrafast", Code: 2683},
	{Name: "IoT 1Mbps", Code: 2629},
	{Name: "IoT 5Mbps", Code: 2631},
}

// aliases maps pre-normalized alternate spellings to canonical names.
var aliases = map[string]string{
	"home-basic":         "Home Basic",
	"nbn12":              "Home Basic",
	"home-standard":      "Home Standard",
	"nbn25":              "Home Standard",
	"home-plus":          "Home Plus",
	"nbn50":              "Home Plus",
	"home-fast":          "Home Fast",
	"nbn100":             "Home Fast",
	"home-superfast":     "Home Superfast",
	"nbn250":             "Home Superfast",
	"home-ultrafast":     "Home Ultrafast",
	"nbn1000":            "Home Ultrafast",
	"gigabit":            "Home Ultrafast",
	"business-fast":      "Business Fast",
	"biz-fast":           "Business Fast",
	"business-ultrafast": "Business Ultrafast",
	"biz-ultrafast":      "Business Ultrafast",
	"iot-1mbps":          "IoT 1Mbps",
	"iot1":               "IoT 1Mbps",
	"iot-5mbps":          "IoT 5Mbps",
	"iot5":               "IoT 5Mbps",
}

// space matches what strings.TrimSpace strips. RE2's \s alone is ASCII-only
// and misses \v, NBSP and the other Unicode spaces.
const space = `[\s\v\p{Z}\x{85}]`

var (
	whitespaceRun = regexp.MustCompile(space + `+`)
	spacedHyphen  = regexp.MustCompile(space + `*-` + space + `*`)
	anyWhitespace = regexp.MustCompile(space)
	hyphenRun     = regexp.MustCompile(`-+`)

	index  = buildLookup()
	byCode = buildByCode()
)

// Normalize converts a plan name into its lookup key. The steps run in a
// fixed order: trim, lowercase, collapse whitespace, tighten hyphens, drop
// remaining whitespace, collapse hyphen runs. Normalize is idempotent.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = spacedHyphen.ReplaceAllString(s, "-")
	s = anyWhitespace.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	return s
}

func buildLookup() map[string]Entry {
	byName := make(map[string]Entry, len(catalog))
	m := make(map[string]Entry, len(catalog)+len(aliases))
	for _, e := range catalog {
		byName[e.Name] = e
		m[Normalize(e.Name)] = e
	}
	for alias, name := range aliases {
		e, ok := byName[name]
		if !ok {
			panic(fmt.Sprintf("plans: alias %q points at unknown plan %q", alias, name))
		}
		if existing, taken := m[alias]; taken && existing.Name != name {
			panic(fmt.Sprintf("plans: alias %q collides with %q", alias, existing.Name))
		}
		m[alias] = e
	}
	return m
}

func buildByCode() map[string]Entry {
	m := make(map[string]Entry, len(catalog))
	for _, e := range catalog {
		m[e.CodeString()] = e
	}
	return m
}

// Resolve finds the catalog entry for a plan name or alias. The second
// return value is false when nothing matches.
func Resolve(input string) (Entry, bool) {
	e, ok := index[Normalize(input)]
	return e, ok
}

// Lookup is Resolve returning a not_found_plan AppError listing the
// valid names when nothing matches.
func Lookup(input string) (Entry, error) {
	if e, ok := Resolve(input); ok {
		return e, nil
	}
	return Entry{}, types.NewAppErrorWithDetails(
		types.ErrCodeNotFoundPlan,
		fmt.Sprintf("unknown plan %q; valid plans: %s", input, strings.Join(ValidNames(), ", ")),
		nil,
		map[string]any{"valid_plans": ValidNames()},
	)
}

// NameForCode returns the canonical name for a plan code, or "" if unknown.
func NameForCode(code string) string {
	return byCode[strings.TrimSpace(code)].Name
}

// List returns every catalog entry in definition order.
func List() []Entry {
	out := make([]Entry, len(catalog))
	copy(out, catalog)
	return out
}

// ValidNames returns the canonical names in definition order.
func ValidNames() []string {
	names := make([]string, len(catalog))
	for i, e := range catalog {
		names[i] = e.Name
	}
	return names
}
