// Package validate assigns authority tiers to evidence sources.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/factaudit/internal/model"
)

// AuthorityClassifier classifies evidence URLs into authority tiers
type AuthorityClassifier struct {
	domainMap    map[string]model.EvidenceTier
	suffixes     []domainTier // ordered filing, primary, secondary
	pathPatterns []*compiledPattern
}

type domainTier struct {
	domain string
	tier   model.EvidenceTier
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.EvidenceTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		domainMap: make(map[string]model.EvidenceTier),
	}

	for host, tier := range config.DomainMap {
		classifier.domainMap[strings.ToLower(host)] = model.ParseTier(tier)
	}

	add := func(domains []string, tier model.EvidenceTier) {
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				classifier.suffixes = append(classifier.suffixes, domainTier{domain: d, tier: tier})
			}
		}
	}
	add(config.FilingDomains, model.TierFiling)
	add(config.PrimaryDomains, model.TierPrimary)
	add(config.SecondaryDomains, model.TierSecondary)

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
			pattern: re,
			tier:    model.ParseTier(pp.Tier),
		})
	}

	return classifier
}

// Classify classifies a URL into an authority tier. Non-URLs are tertiary.
func (a *AuthorityClassifier) Classify(rawURL string) model.EvidenceTier {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := strings.ToLower(parsed.Hostname())

	// Explicit mappings win
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	// Configured domains, most authoritative first (foo.sec.gov matches sec.gov)
	for _, dt := range a.suffixes {
		if host == dt.domain || strings.HasSuffix(host, "."+dt.domain) {
			return dt.tier
		}
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic hosts
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// AssignTiers fills in the tier of every evidence item that arrived without one
func (a *AuthorityClassifier) AssignTiers(items []model.EvidenceItem) {
	for i := range items {
		if items[i].Tier != model.TierUnknown {
			continue
		}
		if link := items[i].Link(); link != "" {
			items[i].Tier = a.Classify(link)
		}
	}
}
