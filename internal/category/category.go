// Package category assigns a coarse moderation-triage label to flagged text.
package category

import "strings"

// Category labels.
const (
	Racial     = "racial"
	Gender     = "gender"
	Religious  = "religious"
	Homophobic = "homophobic"
	General    = "general"
	None       = "none"
)

type entry struct {
	name     string
	keywords []string
}

// table is searched in order; the first category with a keyword hit wins.
var table = []entry{
	{Racial, []string{
		"racist", "racial", "ethnic", "race ", "immigrant", "foreigner", "refugee",
		"black people", "white people", "brown people", "asian", "african",
		"mexican", "arab", "go back to", "your country", "skin color", "colored people",
	}},
	{Gender, []string{
		"sexist", "misogyn", "gender", "women", "woman", "girls", "feminist",
		"kitchen", "females",
	}},
	{Religious, []string{
		"religious hatred", "anti-semitic", "antisemitic", "islamophobic",
		"religion", "muslim", "islam", "jews", "jewish", "christian", "hindu",
		"sikh", "catholic", "mosque", "synagogue", "church",
	}},
	{Homophobic, []string{
		"homophobic", "lgbtq", "gay", "lesbian", "transgender", "trans people",
		"queer", "bisexual", "homosexual",
	}},
	{General, []string{"offensive", "abusive", "threatening"}},
}

// Categorize returns the first matching category for text, or General when
// nothing matches. Callers only invoke it for flagged text.
func Categorize(text string) string {
	lc := strings.ToLower(text)
	for _, e := range table {
		for _, kw := range e.keywords {
			if strings.Contains(lc, kw) {
				return e.name
			}
		}
	}
	return General
}

// Names lists the categories in evaluation order.
func Names() []string {
	out := make([]string, 0, len(table))
	for _, e := range table {
		out = append(out, e.name)
	}
	return out
}
