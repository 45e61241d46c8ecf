// Package geoip fills in network origin and country for clients whose platform
// did not supply them, using MaxMind GeoLite2/GeoIP2 databases.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"linkgate/internal/models"

	"github.com/oschwald/maxminddb-golang"
)

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

type asnRecord struct {
	Number uint `maxminddb:"autonomous_system_number"`
}

// Resolver looks up best-effort metadata. Either database may be absent; a
// Resolver with neither answers every lookup with empty values.
type Resolver struct {
	country *maxminddb.Reader
	asn     *maxminddb.Reader
}

// Open loads the databases named in cfg. Empty paths are skipped.
func Open(cfg models.GeoIPConfig) (*Resolver, error) {
	r := &Resolver{}
	if cfg.CountryDB != "" {
		db, err := maxminddb.Open(cfg.CountryDB)
		if err != nil {
			return nil, fmt.Errorf("open country database: %w", err)
		}
		r.country = db
	}
	if cfg.ASNDB != "" {
		db, err := maxminddb.Open(cfg.ASNDB)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open ASN database: %w", err)
		}
		r.asn = db
	}
	return r, nil
}

// Enabled reports whether at least one database is loaded.
func (r *Resolver) Enabled() bool {
	return r != nil && (r.country != nil || r.asn != nil)
}

// Lookup returns the ASN (decimal, without the "AS" prefix) and ISO country
// code for ip. Lookup failures and unknown addresses yield empty strings.
func (r *Resolver) Lookup(ip string) (asn, country string) {
	if !r.Enabled() {
		return "", ""
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return "", ""
	}

	if r.asn != nil {
		var rec asnRecord
		if err := r.asn.Lookup(addr, &rec); err == nil && rec.Number != 0 {
			asn = strconv.FormatUint(uint64(rec.Number), 10)
		}
	}
	if r.country != nil {
		var rec countryRecord
		if err := r.country.Lookup(addr, &rec); err == nil {
			country = rec.Country.ISOCode
		}
	}
	return asn, country
}

// Close releases both databases.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.country != nil {
		errs = append(errs, r.country.Close())
	}
	if r.asn != nil {
		errs = append(errs, r.asn.Close())
	}
	return errors.Join(errs...)
}
