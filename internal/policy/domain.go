package policy

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// UnknownDomain is returned for URLs that cannot be parsed or carry no host.
const UnknownDomain = "unknown"

// NormalizeDomain derives the derivation domain from a URL. Internationalized
// hosts are converted to their ASCII (punycode) form and only a leading
// "www." is stripped; there is no public-suffix awareness.
func NormalizeDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownDomain
	}
	if strings.EqualFold(u.Scheme, "file") {
		p := u.EscapedPath()
		name := p[strings.LastIndex(p, "/")+1:]
		if name == "" {
			return "localfile"
		}
		return name
	}
	host := asciiHost(u.Hostname())
	if u.Scheme == "" || host == "" {
		return UnknownDomain
	}
	domain := strings.TrimPrefix(host, "www.")
	if domain == "" {
		return UnknownDomain
	}
	return domain
}

// asciiHost lowercases host and maps non-ASCII labels to punycode. A host
// that fails IDNA validation is kept as typed.
func asciiHost(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] >= 0x80 {
			if a, err := idna.Lookup.ToASCII(host); err == nil {
				return a
			}
			break
		}
	}
	return strings.ToLower(host)
}

// SiteStatus grades a URL before generation.
type SiteStatus string

const (
	SiteOK         SiteStatus = "ok"
	SiteInsecure   SiteStatus = "insecure"
	SiteSuspicious SiteStatus = "suspicious"
	SiteError      SiteStatus = "error"
)

// SiteContext is the pre-generation view of a URL shown to the user.
type SiteContext struct {
	URL     string     `json:"url"`
	Domain  string     `json:"domain"`
	Status  SiteStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// Inspect grades a URL: plain HTTP outside localhost is insecure, and
// hostnames with homograph or obfuscation traits are suspicious.
func Inspect(rawURL string) SiteContext {
	sc := SiteContext{URL: rawURL, Domain: NormalizeDomain(rawURL), Status: SiteOK}

	u, err := url.Parse(rawURL)
	if err != nil || sc.Domain == UnknownDomain {
		sc.Domain = UnknownDomain
		sc.Status = SiteError
		sc.Message = "Invalid URL"
		return sc
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "https" && scheme != "file" && u.Hostname() != "localhost" {
		sc.Status = SiteInsecure
		sc.Message = "Insecure Protocol (" + strings.ToUpper(scheme) + ")"
		return sc
	}

	if warning := phishingWarning(sc.Domain); warning != "" {
		sc.Status = SiteSuspicious
		sc.Message = "PHISHING RISK: " + warning
	}
	return sc
}

func phishingWarning(domain string) string {
	switch {
	case domain == "" || domain == UnknownDomain:
		return ""
	case strings.Contains(domain, "xn--"):
		return "Punycode/IDN detected"
	case len(domain) > 40:
		return "Unusually long hostname"
	case strings.Count(domain, "-") >= 4:
		return "Excessive hyphens"
	}
	return ""
}
