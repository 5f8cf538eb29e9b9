package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Signer computes the gateway's HMAC-SHA512 signatures.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA512 of data.
func (s *Signer) Sign(data string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares sig against the signature of data in constant time. The gateway
// may send either hex case.
func (s *Signer) Verify(data, sig string) bool {
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil || len(got) != sha512.Size {
		return false
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(data))
	return hmac.Equal(mac.Sum(nil), got)
}

// encodeReplacer restores the characters encodeURIComponent leaves alone.
var encodeReplacer = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// Encode percent-encodes v the way the gateway does: encodeURIComponent with
// spaces written as "+".
func Encode(v string) string {
	return encodeReplacer.Replace(url.QueryEscape(v))
}

// SortedQuery encodes every key and value, sorts by encoded key and joins them
// as k=v pairs. Empty values are skipped. The result is both the signed data
// and the query string sent to the gateway.
func SortedQuery(fields map[string]string) string {
	pairs := make([][2]string, 0, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		pairs = append(pairs, [2]string{Encode(k), Encode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String()
}

// pipeJoin builds the signed data of the JSON API calls.
func pipeJoin(parts ...string) string {
	return strings.Join(parts, "|")
}
