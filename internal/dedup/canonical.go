// Package dedup reduces raw collector output through three ordered stages:
// canonical-URL exact match, content-hash match, and title similarity.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"market-news-lab/internal/domain"
)

// trackingParams are query parameters stripped during URL canonicalization.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {},
	"utm_content": {}, "ref": {}, "source": {}, "fbclid": {}, "gclid": {},
	"msclkid": {}, "mc_cid": {}, "mc_eid": {}, "affiliate": {}, "partner": {},
	"tracking": {}, "_ga": {}, "ncid": {}, "sr_share": {},
}

// CanonicalizeURL strips tracking parameters and the fragment, lower-cases
// scheme and host, and trims the trailing slash of the path. Remaining
// query parameters are re-encoded in sorted key order so the result is
// stable and idempotent. Unparseable input is returned unchanged.
func CanonicalizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""

	if u.RawQuery != "" {
		params := u.Query()
		filtered := url.Values{}
		for key, vals := range params {
			if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
				continue
			}
			for _, v := range vals {
				if v == "" {
					continue
				}
				filtered.Add(key, v)
			}
		}
		u.RawQuery = filtered.Encode()
	}

	return u.String()
}

// NormalizeTitle lowers a title to a comparison form: Unicode NFKC, lower
// case, every non-alphanumeric rune replaced by a space, whitespace
// collapsed to single spaces.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	t := norm.NFKC.String(title)
	t = strings.ToLower(t)

	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ContentHash computes the exact-duplicate key for an item:
// SHA256(normalized title | YYYY-MM-DD of published_at | source).
func ContentHash(item *domain.RawItem) string {
	dateStr := ""
	if !item.PublishedAt.IsZero() {
		dateStr = item.PublishedAt.Format("2006-01-02")
	}

	content := fmt.Sprintf("%s|%s|%s", NormalizeTitle(item.Title), dateStr, item.Source)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
