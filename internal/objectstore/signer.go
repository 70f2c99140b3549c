// Package objectstore handles the hand-off of file bytes to the
// object store/CDN. The service never streams book files itself: a
// successful redemption redirects the client to a short-lived signed
// URL that the CDN edge verifies with the shared secret.
package objectstore

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "net/url"
    "strconv"
    "time"
)

// Signer produces expiring signed URLs for stored objects.
type Signer struct {
    secret []byte
    ttl    time.Duration
    now    func() time.Time
}

// NewSigner builds a Signer with the given shared secret and link
// lifetime. The lifetime covers only the redirect hop and should be
// short; it is independent of the download token's own expiry.
func NewSigner(secret string, ttl time.Duration) *Signer {
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }
    return &Signer{
        secret: []byte(secret),
        ttl:    ttl,
        now:    func() time.Time { return time.Now().UTC() },
    }
}

// SignURL appends an expiry and an HMAC-SHA256 signature over
// (path, expiry) to the stored URL. The CDN recomputes the MAC with
// the same secret and rejects stale or tampered links.
func (s *Signer) SignURL(raw string) (string, error) {
    u, err := url.Parse(raw)
    if err != nil {
        return "", fmt.Errorf("parse storage url: %w", err)
    }
    exp := s.now().Add(s.ttl).Unix()
    q := u.Query()
    q.Set("expires", strconv.FormatInt(exp, 10))
    q.Set("signature", s.mac(u.Path, exp))
    u.RawQuery = q.Encode()
    return u.String(), nil
}

// Verify checks a previously signed URL. Used in tests and by the
// edge when it shares this package.
func (s *Signer) Verify(raw string) bool {
    u, err := url.Parse(raw)
    if err != nil {
        return false
    }
    q := u.Query()
    exp, err := strconv.ParseInt(q.Get("expires"), 10, 64)
    if err != nil {
        return false
    }
    if s.now().Unix() >= exp {
        return false
    }
    expect := s.mac(u.Path, exp)
    return hmac.Equal([]byte(expect), []byte(q.Get("signature")))
}

func (s *Signer) mac(path string, exp int64) string {
    h := hmac.New(sha256.New, s.secret)
    fmt.Fprintf(h, "%s\n%d", path, exp)
    return hex.EncodeToString(h.Sum(nil))
}
