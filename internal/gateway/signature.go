// internal/gateway/signature.go
package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	xerrors "settlement-service/internal/pkg/errors"
)

// MACField is the parameter carrying the checksum on gateway requests and
// callbacks.
const MACField = "CheckMacValue"

// escapeRestorer undoes percent-encoding for the characters the gateway's
// canonical form leaves unescaped. Applied after lowercasing, so the escapes
// are matched in lowercase hex.
var escapeRestorer = strings.NewReplacer(
	"%2d", "-",
	"%5f", "_",
	"%2e", ".",
	"%21", "!",
	"%2a", "*",
	"%28", "(",
	"%29", ")",
)

// Codec produces and verifies the gateway's CheckMacValue over an arbitrary
// string-keyed parameter set. The result is order-independent: any
// permutation of the input keys signs identically.
type Codec struct {
	hashKey string
	hashIV  string
}

func NewCodec(hashKey, hashIV string) *Codec {
	return &Codec{hashKey: hashKey, hashIV: hashIV}
}

// Sign computes the MAC over params, ignoring any pre-existing MAC field.
//
// Canonicalization, in order: sort keys case-insensitively ascending, join
// as key=value pairs with &, wrap as HashKey=..&..&HashIV=.., percent-encode
// the whole string, lowercase it, restore - _ . ! * ( ), SHA-256, uppercase
// hex.
func (c *Codec) Sign(params map[string]string) (string, error) {
	if c.hashKey == "" || c.hashIV == "" {
		return "", xerrors.Wrap(xerrors.ErrConfiguration, "gateway hash key or iv is not set")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.EqualFold(k, MACField) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(c.hashKey)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString("&HashIV=")
	b.WriteString(c.hashIV)

	encoded := strings.ToLower(url.QueryEscape(b.String()))
	encoded = escapeRestorer.Replace(encoded)

	sum := sha256.Sum256([]byte(encoded))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// Verify recomputes the MAC over every field except the MAC field itself and
// compares it against the supplied value. A params set without a MAC field
// never verifies.
func (c *Codec) Verify(params map[string]string) (bool, error) {
	var supplied string
	for k, v := range params {
		if strings.EqualFold(k, MACField) {
			supplied = v
		}
	}
	if supplied == "" {
		return false, nil
	}

	want, err := c.Sign(params)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(supplied)) == 1, nil
}
