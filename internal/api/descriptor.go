package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"linkgate/internal/classifier"
	"linkgate/internal/models"
)

// ClientIP returns the best-effort client network identifier. The first hop
// of X-Forwarded-For wins, then platform headers, then the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(h)); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// firstHeader returns the first non-empty value among the named headers.
func firstHeader(r *http.Request, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// buildDescriptor reads everything the gate needs from the request. Platform
// metadata headers take precedence over a GeoIP lookup.
func (h *Handlers) buildDescriptor(w http.ResponseWriter, r *http.Request) models.Descriptor {
	d := models.Descriptor{
		ClientID:  ClientIP(r),
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     make(map[string]string),
		Cookie:    r.Header.Get("Cookie"),
		ASN:       classifier.NormalizeASN(firstHeader(r, h.config.Classifier.ASNHeaders)),
		Country:   strings.ToUpper(firstHeader(r, h.config.Classifier.CountryHeaders)),
	}

	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			d.Query[name] = values[0]
		}
	}

	// "XX" is what some platforms send for an unknown country.
	if d.Country == "XX" {
		d.Country = ""
	}

	if (d.ASN == "" || d.Country == "") && h.geoip.Enabled() {
		asn, country := h.geoip.Lookup(d.ClientID)
		if d.ASN == "" {
			d.ASN = asn
		}
		if d.Country == "" {
			d.Country = country
		}
	}

	if r.Method == http.MethodPost {
		d.Submission, d.BadBody = h.decodeSubmission(w, r)
	}
	return d
}

// decodeSubmission parses the JSON proof body. An empty body yields no
// submission; anything undecodable is reported as bad.
func (h *Handlers) decodeSubmission(w http.ResponseWriter, r *http.Request) (*models.Submission, bool) {
	body := http.MaxBytesReader(w, r.Body, h.config.Server.MaxBodyBytes)
	defer body.Close()

	var sub models.Submission
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false
		}
		return nil, true
	}
	return &sub, false
}
