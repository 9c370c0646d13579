package content

import (
	"regexp"
	"strings"
)

type scrubRule struct {
	Label       string
	Re          *regexp.Regexp
	Replacement string
}

var wsRE = regexp.MustCompile(`[ \t]{2,}`)

var itemMetaScrubRules = []scrubRule{
	{Label: "as an ai", Re: regexp.MustCompile(`(?i)as an ai( language model)?,?\s*`), Replacement: ""},
	{Label: "i hope this helps", Re: regexp.MustCompile(`(?i)i hope this helps[.!]?`), Replacement: ""},
	{Label: "let me know if you want", Re: regexp.MustCompile(`(?i)let me know if you (want|need)[^.]*\.?`), Replacement: ""},
	{Label: "here's a", Re: regexp.MustCompile(`(?i)^here('s| is) (a|an|the) [^:]*:\s*`), Replacement: ""},
	{Label: "great question", Re: regexp.MustCompile(`(?i)great question[.!]?\s*`), Replacement: ""},
}

// scrubMetaText removes assistant chatter from learner-facing text.
func scrubMetaText(s string) (string, []string) {
	if strings.TrimSpace(s) == "" {
		return s, nil
	}
	orig := s
	var hit []string
	for _, r := range itemMetaScrubRules {
		if r.Re.MatchString(s) {
			s = r.Re.ReplaceAllString(s, r.Replacement)
			hit = append(hit, r.Label)
		}
	}
	if s != orig {
		s = wsRE.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
	}
	return s, hit
}

// ScrubItems cleans title, body and answer of every item.
func ScrubItems(items []Item) ([]Item, []string) {
	var hits []string
	out := make([]Item, len(items))
	for i, it := range items {
		var h []string
		it.Title, h = scrubMetaText(it.Title)
		hits = append(hits, h...)
		it.Body, h = scrubMetaText(it.Body)
		hits = append(hits, h...)
		it.Answer, h = scrubMetaText(it.Answer)
		hits = append(hits, h...)
		out[i] = it
	}
	return out, hits
}
