// CLAUDE:SUMMARY Regex extraction of domain/URL substrings from free text: normalise scheme, dedup, sort, derive hostnames.
// Package extractor finds domain-like substrings in free-form text.
//
// A match is an optional http(s) scheme followed by a host of alphanumerics,
// hyphens and dots whose last label is at least two letters, or a bare
// "www." host. Scheme-less matches are normalised to https://. The result
// is a sorted set, so the output does not depend on match order.
package extractor

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// DefaultExclusions are URL prefixes dropped from every result.
var DefaultExclusions = []string{"https://39267-jawan.html"}

var domainPattern = regexp.MustCompile(
	`(https?://)?([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})|www\.[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
)

// Result is the outcome of one extraction.
type Result struct {
	URLs      []string `json:"urls"`      // normalised, sorted, unique
	Hostnames []string `json:"hostnames"` // sorted, unique
}

// Extractor applies the domain pattern and the exclusion list.
type Extractor struct {
	exclude []string
}

// New creates an Extractor. A nil exclude uses DefaultExclusions; pass an
// empty non-nil slice to exclude nothing.
func New(exclude []string) *Extractor {
	if exclude == nil {
		exclude = DefaultExclusions
	}
	return &Extractor{exclude: slices.Clone(exclude)}
}

// Extract returns the sorted unique URLs found in text and their hostnames.
// Empty input, or input without matches, yields an empty Result.
func (e *Extractor) Extract(text string) Result {
	seen := make(map[string]struct{})
	for _, m := range domainPattern.FindAllStringSubmatch(text, -1) {
		u := normalize(m)
		if u == "" || e.excluded(u) {
			continue
		}
		seen[u] = struct{}{}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	slices.Sort(urls)

	return Result{URLs: urls, Hostnames: Hostnames(urls)}
}

// Hostnames returns the sorted unique network locations of urls.
// Entries that do not parse, or have no host, are skipped.
func Hostnames(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	hosts := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if _, ok := seen[u.Host]; ok {
			continue
		}
		seen[u.Host] = struct{}{}
		hosts = append(hosts, u.Host)
	}
	slices.Sort(hosts)
	return hosts
}

// normalize turns one submatch into a URL with a scheme.
// m[1] is the optional scheme, m[2] the host of the first alternative; the
// www alternative only fills m[0].
func normalize(m []string) string {
	if m[1] != "" {
		return m[1] + m[2]
	}
	host := m[2]
	if host == "" {
		host = m[0]
	}
	if host == "" {
		return ""
	}
	return "https://" + host
}

func (e *Extractor) excluded(u string) bool {
	for _, prefix := range e.exclude {
		if prefix != "" && strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}
