package canon

import (
	"regexp"
	"sort"
)

// Dict is the shared shape for both query strings and structured request
// bodies once decoded: a parameter name mapped to every value it carried, in
// the order captured. A name with two values (either two occurrences of the
// same query key, or two same-named keys in a JSON object) keeps both.
type Dict map[string][]string

// MatchesPrefix reports whether re matches starting at position 0 of s,
// mirroring Python's re.match (which anchors only the start, not the end)
// rather than Go regexp's default unanchored search.
func MatchesPrefix(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// ApplyIgnoreTokens returns a copy of d with the value list of every key
// whose name matches ignoreTokens (Python re.match semantics, see
// MatchesPrefix) replaced by an empty slice, so CSRF-like nonces can't defeat
// equivalence testing. A nil ignoreTokens leaves d unchanged.
func ApplyIgnoreTokens(d Dict, ignoreTokens *regexp.Regexp) Dict {
	if ignoreTokens == nil {
		return d
	}
	out := make(Dict, len(d))
	for k, v := range d {
		if MatchesPrefix(ignoreTokens, k) {
			out[k] = []string{}
			continue
		}
		out[k] = v
	}
	return out
}

// SameNames reports whether a and b share exactly the same set of keys;
// values are ignored.
func SameNames(a, b Dict) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// SameValues reports whether a and b are equal as a multiset of (name, value)
// pairs, independent of key iteration order or within-key value order. Two
// dicts with the same key appearing with the values swapped across entries
// are still equal here, matching the spec's "multiset of (name,value) pairs"
// wording rather than Python's literal per-key list equality.
func SameValues(a, b Dict) bool {
	pa := pairs(a)
	pb := pairs(b)
	if len(pa) != len(pb) {
		return false
	}
	sort.Strings(pa)
	sort.Strings(pb)
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

func pairs(d Dict) []string {
	out := make([]string, 0, len(d))
	for k, values := range d {
		for _, v := range values {
			out = append(out, k+"\x00"+v)
		}
	}
	return out
}
