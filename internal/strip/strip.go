// Package strip implements the HTML/JSON stripper (C2): it reduces a
// response body to a comparable token multiset, grounded on
// modules/html_json_utils.py's remove_tags/get_text_values (HTML path) and
// roll_out_json_tuple_based (JSON path) in the A2CT reference implementation. HTML
// parsing uses goquery the way the teacher's
// internal/utils/form_extractor.go already does.
package strip

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/BetterCallFirewall/a2ct-go/internal/jsonflat"
)

// M3Tags is the default tag strip set for the M3 profile.
var M3Tags = []string{"meta", "script", "link"}

// M4FallbackTags is the broader tag strip set the M4 profile falls back to
// when the body isn't valid JSON.
var M4FallbackTags = []string{"meta", "script", "link", "aside", "nav", "header", "footer"}

// StripM3 strips the M3 tag set (plus extraTags) from an HTML body, then
// returns the visible text (whitespace-trimmed, empty fragments dropped) and
// the value of every non-hidden <input>, in document order.
//
// If body can't be parsed as HTML — BeautifulSoup's "contains replacement
// characters" signal in the original, reproduced here as a UTF-8 validity
// check — the body is returned unparsed as a single-element token list.
func StripM3(body []byte, extraTags []string) []string {
	return stripProfile(body, append(append([]string{}, M3Tags...), extraTags...))
}

// StripM4 first attempts to parse body as JSON and flatten it per the
// canonicalizer's tuple-based rules (jsonflat.FlattenDict, so repeated keys
// each contribute a "key:value" token); on failure it falls back to the M3
// extraction with the broader M4FallbackTags strip set. The order of the
// JSON tokens is not defined.
func StripM4(body []byte, extraTags []string) []string {
	if dict, err := jsonflat.FlattenDict(body); err == nil {
		var tokens []string
		for key, values := range dict {
			for _, value := range values {
				tokens = append(tokens, key+":"+value)
			}
		}
		return tokens
	}
	return stripProfile(body, append(append([]string{}, M4FallbackTags...), extraTags...))
}

func stripProfile(body []byte, tags []string) []string {
	if !utf8.Valid(body) {
		return []string{string(body)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return []string{string(body)}
	}

	if len(tags) > 0 {
		doc.Find(strings.Join(tags, ", ")).Remove()
	}

	var fragments []string
	var collect func(*goquery.Selection)
	collect = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				fragments = append(fragments, strings.Split(c.Text(), "\n")...)
				return
			}
			collect(c)
		})
	}
	collect(doc.Selection)

	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		if t, _ := s.Attr("type"); strings.EqualFold(t, "hidden") {
			return
		}
		if v, ok := s.Attr("value"); ok {
			fragments = append(fragments, v)
		}
	})

	out := fragments[:0]
	for _, f := range fragments {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
