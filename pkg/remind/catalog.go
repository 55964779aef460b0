package remind

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Token is a semantic keyword the resolver understands, independent of locale.
type Token string

// Relative-offset family.
const (
	TokIn      Token = "in"
	TokMinutes Token = "minutes"
	TokHours   Token = "hours"
	TokDays    Token = "days"
)

// Absolute-date family.
const (
	TokToday         Token = "today"
	TokTomorrow      Token = "tomorrow"
	TokAfterTomorrow Token = "after_tomorrow"
	TokMonday        Token = "monday"
	TokTuesday       Token = "tuesday"
	TokWednesday     Token = "wednesday"
	TokThursday      Token = "thursday"
	TokFriday        Token = "friday"
	TokSaturday      Token = "saturday"
	TokSunday        Token = "sunday"
)

// Time-of-day family.
const (
	TokMorning   Token = "morning"
	TokLunch     Token = "lunch"
	TokAfternoon Token = "afternoon"
	TokDinner    Token = "dinner"
	TokEvening   Token = "evening"
	TokNight     Token = "night"
)

type family int

const (
	familyRelative family = iota + 1
	familyDate
	familyTimeOfDay
)

var tokenFamily = map[Token]family{
	TokIn: familyRelative, TokMinutes: familyRelative, TokHours: familyRelative, TokDays: familyRelative,

	TokToday: familyDate, TokTomorrow: familyDate, TokAfterTomorrow: familyDate,
	TokMonday: familyDate, TokTuesday: familyDate, TokWednesday: familyDate, TokThursday: familyDate,
	TokFriday: familyDate, TokSaturday: familyDate, TokSunday: familyDate,

	TokMorning: familyTimeOfDay, TokLunch: familyTimeOfDay, TokAfternoon: familyTimeOfDay,
	TokDinner: familyTimeOfDay, TokEvening: familyTimeOfDay, TokNight: familyTimeOfDay,
}

var weekdayTokens = map[Token]time.Weekday{
	TokMonday: time.Monday, TokTuesday: time.Tuesday, TokWednesday: time.Wednesday,
	TokThursday: time.Thursday, TokFriday: time.Friday, TokSaturday: time.Saturday,
	TokSunday: time.Sunday,
}

// clockOf holds the fixed clock time of each time-of-day keyword.
var clockOf = map[Token]TimeOfDay{
	TokMorning:   {Hour: 7},
	TokLunch:     {Hour: 13},
	TokAfternoon: {Hour: 16},
	TokDinner:    {Hour: 19},
	TokEvening:   {Hour: 20},
	TokNight:     {Hour: 3},
}

// Synonyms is the raw catalog: token name -> surface forms. A single entry may
// hold several synonyms separated by '|' or '#', e.g. "tomorrow|tmrw#завтра".
type Synonyms map[string][]string

// Catalog is the compiled, immutable keyword catalog. A nil *Catalog is valid
// and matches no keywords.
type Catalog struct {
	relative map[Token]*regexp.Regexp // keyed by unit token

	dates     *regexp.Regexp
	dateForms map[string]Token

	clocks     *regexp.Regexp
	clockForms map[string]Token

	forms map[Token][]string
}

// CompileCatalog validates raw and builds case-insensitive matchers.
func CompileCatalog(raw Synonyms) (*Catalog, error) {
	forms := make(map[Token][]string, len(raw))
	owner := map[family]map[string]Token{}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tok := Token(strings.ToLower(strings.TrimSpace(name)))
		fam, ok := tokenFamily[tok]
		if !ok {
			return nil, fmt.Errorf("keywords: unknown token %q", name)
		}
		if owner[fam] == nil {
			owner[fam] = map[string]Token{}
		}
		for _, entry := range raw[name] {
			for _, f := range splitSynonyms(entry) {
				if prev, dup := owner[fam][f]; dup {
					if prev != tok {
						return nil, fmt.Errorf("keywords: %q is claimed by both %s and %s", f, prev, tok)
					}
					continue
				}
				owner[fam][f] = tok
				forms[tok] = append(forms[tok], f)
			}
		}
	}

	c := &Catalog{
		relative:   map[Token]*regexp.Regexp{},
		dateForms:  owner[familyDate],
		clockForms: owner[familyTimeOfDay],
		forms:      forms,
	}
	if in := forms[TokIn]; len(in) > 0 {
		for _, unit := range []Token{TokMinutes, TokHours, TokDays} {
			if len(forms[unit]) == 0 {
				continue
			}
			c.relative[unit] = relativeMatcher(in, forms[unit])
		}
	}
	c.dates = keywordMatcher(c.dateForms)
	c.clocks = keywordMatcher(c.clockForms)
	return c, nil
}

// MustCompileCatalog is like CompileCatalog but panics on error.
func MustCompileCatalog(raw Synonyms) *Catalog {
	c, err := CompileCatalog(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Label returns the first surface form of tok, or the token name itself.
func (c *Catalog) Label(tok Token) string {
	if c != nil {
		if fs := c.forms[tok]; len(fs) > 0 {
			return fs[0]
		}
	}
	return string(tok)
}

// WeekdayLabel returns the catalog label of a weekday.
func (c *Catalog) WeekdayLabel(wd time.Weekday) string {
	for tok, w := range weekdayTokens {
		if w == wd {
			return c.Label(tok)
		}
	}
	return wd.String()
}

func splitSynonyms(entry string) []string {
	parts := strings.FieldsFunc(entry, func(r rune) bool { return r == '|' || r == '#' })
	out := parts[:0]
	for _, p := range parts {
		p = normalizeSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// alternation builds "(?:a|b|c)" with longer forms first so that a phrase is
// never shadowed by one of its own prefixes.
func alternation(forms []string) string {
	fs := append([]string(nil), forms...)
	sort.SliceStable(fs, func(i, j int) bool { return len(fs[i]) > len(fs[j]) })
	quoted := make([]string, len(fs))
	for i, f := range fs {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(f), " ", `\s+`)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// relativeMatcher accepts both "<in> N <unit>" and "N <unit> <in>".
// Group 1 or group 2 holds N.
func relativeMatcher(in, unit []string) *regexp.Regexp {
	pre, u := alternation(in), alternation(unit)
	expr := `(?i)(?:^|\s)(?:` + pre + `\s*(\d+)\s*` + u + `|(\d+)\s*` + u + `\s+` + pre + `)(?:\s|$)`
	return regexp.MustCompile(expr)
}

func keywordMatcher(forms map[string]Token) *regexp.Regexp {
	if len(forms) == 0 {
		return nil
	}
	all := make([]string, 0, len(forms))
	for f := range forms {
		all = append(all, f)
	}
	sort.Strings(all)
	return regexp.MustCompile(`(?i)(?:^|\s)(` + alternation(all) + `)(?:\s|$)`)
}

// Registry holds the process-wide compiled catalog. Reads are lock-free;
// Rebuild swaps in a freshly compiled catalog and keeps the old one on error.
type Registry struct {
	cur atomic.Pointer[Catalog]
}

// NewRegistry compiles raw and returns a ready Registry.
func NewRegistry(raw Synonyms) (*Registry, error) {
	r := &Registry{}
	if err := r.Rebuild(raw); err != nil {
		return nil, err
	}
	return r, nil
}

// Rebuild recompiles the catalog from raw.
func (r *Registry) Rebuild(raw Synonyms) error {
	c, err := CompileCatalog(raw)
	if err != nil {
		return err
	}
	r.cur.Store(c)
	return nil
}

// Catalog returns the current compiled catalog.
func (r *Registry) Catalog() *Catalog {
	if r == nil {
		return nil
	}
	return r.cur.Load()
}
