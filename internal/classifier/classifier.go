// Package classifier makes the cheap allow/deny decision from static request
// attributes. It holds no state beyond the configuration it was built with.
package classifier

import (
	"fmt"
	"net/netip"
	"strings"

	"linkgate/internal/models"

	"github.com/mssola/useragent"
)

// Rejection reasons. They are recorded internally and never sent to clients.
const (
	ReasonEmptyUserAgent = "empty_user_agent"
	ReasonUserAgent      = "user_agent_denied"
	ReasonParsedBot      = "user_agent_bot"
	ReasonASN            = "asn_denied"
	ReasonNetwork        = "network_denied"
	ReasonCountry        = "country_not_allowed"
	ReasonHead           = "head_request"
)

// Verdict is the result of classifying one request. Preview is set for HEAD
// requests on a preview path: they pass, but only receive metadata.
type Verdict struct {
	Pass    bool
	Preview bool
	Reason  string
}

func pass() Verdict                { return Verdict{Pass: true} }
func reject(reason string) Verdict { return Verdict{Reason: reason} }

// Classifier evaluates descriptors against denylists and allowlists fixed at
// construction. It is safe for concurrent use.
type Classifier struct {
	userAgents   []string
	parseUA      bool
	asns         map[string]struct{}
	networks     []netip.Prefix
	countries    map[string]struct{}
	blockHead    bool
	previewPaths map[string]struct{}
}

// New builds a Classifier. It fails only on malformed CIDR entries.
func New(cfg models.ClassifierConfig) (*Classifier, error) {
	c := &Classifier{
		parseUA:      cfg.ParseUserAgent,
		asns:         make(map[string]struct{}, len(cfg.ASNDenylist)),
		countries:    make(map[string]struct{}, len(cfg.AllowedCountries)),
		blockHead:    cfg.BlockHead,
		previewPaths: make(map[string]struct{}, len(cfg.PreviewPaths)),
	}

	for _, s := range cfg.UserAgentDenylist {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			c.userAgents = append(c.userAgents, s)
		}
	}
	for _, a := range cfg.ASNDenylist {
		if n := NormalizeASN(a); n != "" {
			c.asns[n] = struct{}{}
		}
	}
	for _, cidr := range cfg.CIDRDenylist {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		c.networks = append(c.networks, p.Masked())
	}
	for _, cc := range cfg.AllowedCountries {
		if cc = strings.ToUpper(strings.TrimSpace(cc)); cc != "" {
			c.countries[cc] = struct{}{}
		}
	}
	for _, p := range cfg.PreviewPaths {
		c.previewPaths[p] = struct{}{}
	}
	return c, nil
}

// Classify runs every check in order and stops at the first rejection. Missing
// network or geography metadata passes; a missing user agent does not.
func (c *Classifier) Classify(d models.Descriptor) Verdict {
	if v := c.checkUserAgent(d.UserAgent); !v.Pass {
		return v
	}
	if _, denied := c.asns[NormalizeASN(d.ASN)]; denied {
		return reject(ReasonASN)
	}
	if c.inDeniedNetwork(d.ClientID) {
		return reject(ReasonNetwork)
	}
	if len(c.countries) > 0 && d.Country != "" {
		if _, ok := c.countries[strings.ToUpper(d.Country)]; !ok {
			return reject(ReasonCountry)
		}
	}
	if strings.EqualFold(d.Method, "HEAD") {
		if _, ok := c.previewPaths[d.Path]; ok {
			return Verdict{Pass: true, Preview: true}
		}
		if c.blockHead {
			return reject(ReasonHead)
		}
	}
	return pass()
}

func (c *Classifier) checkUserAgent(ua string) Verdict {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return reject(ReasonEmptyUserAgent)
	}

	lower := strings.ToLower(ua)
	for _, s := range c.userAgents {
		if strings.Contains(lower, s) {
			return reject(ReasonUserAgent)
		}
	}

	if c.parseUA && useragent.New(ua).Bot() {
		return reject(ReasonParsedBot)
	}
	return pass()
}

func (c *Classifier) inDeniedNetwork(clientID string) bool {
	if len(c.networks) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(clientID)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.networks {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// NormalizeASN turns "AS13335", "as13335" and "13335" into "13335". Empty or
// non-numeric input yields "".
func NormalizeASN(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.EqualFold(s[:2], "AS") {
		s = s[2:]
	}
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.TrimLeft(s, "0")
}
