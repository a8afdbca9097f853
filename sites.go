package fakecheck

import (
	"net/url"
	"slices"
	"strings"
)

// RiskySites are marketplaces where counterfeit listings are common.
// Entries match a listing's SourceSite name case-insensitively, or its URL
// host: a bare name must equal one host label ("wish" matches www.wish.com,
// not swish.example) and a dotted entry must be the host or a parent domain.
var RiskySites = []string{
	"AliExpress",
	"DHgate",
	"Wish",
}

// IsRiskySite reports whether the listing comes from a known risky marketplace.
// It returns the matching site name for the reason text.
func IsRiskySite(l ListingCandidate, extra []string) (string, bool) {
	site := strings.TrimSpace(l.SourceSite)
	for _, list := range [][]string{RiskySites, extra} {
		for _, s := range list {
			if s != "" && strings.EqualFold(site, s) {
				return site, true
			}
		}
	}

	host := extractHost(l.URL)
	if host == "" {
		return "", false
	}
	for _, list := range [][]string{RiskySites, extra} {
		for _, s := range list {
			if s == "" {
				continue
			}
			if hostMatches(host, s) {
				if site == "" {
					site = s
				}
				return site, true
			}
		}
	}
	return "", false
}

func extractHost(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func hostMatches(host, site string) bool {
	site = strings.ToLower(strings.TrimSpace(site))
	if strings.Contains(site, ".") {
		return host == site || strings.HasSuffix(host, "."+site)
	}
	return slices.Contains(strings.Split(host, "."), site)
}
