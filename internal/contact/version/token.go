// Package version derives the opaque optimistic-concurrency token exposed
// to clients through ETag headers.
package version

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// Token returns the version token for a lock_version. The function is part
// of the wire contract: clients persist tokens and replay them in If-Match,
// so the mapping must stay deterministic across releases. lock_version 0
// always produces "cfcd208495d565ef66e7dff9f98764da".
func Token(lockVersion int64) string {
	sum := md5.Sum([]byte(strconv.FormatInt(lockVersion, 10)))
	return hex.EncodeToString(sum[:])
}

// Quote wraps a token in double quotes for use in an ETag header.
func Quote(token string) string {
	return `"` + token + `"`
}

// Unquote strips a weak-validator prefix and surrounding double quotes
// from a conditional request header value. Intermediaries may weaken an
// ETag to W/"..." without changing the token inside it.
func Unquote(header string) string {
	header = strings.TrimPrefix(header, "W/")
	if len(header) >= 2 && header[0] == '"' && header[len(header)-1] == '"' {
		return header[1 : len(header)-1]
	}
	return header
}
