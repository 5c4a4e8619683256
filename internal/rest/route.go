package rest

import (
	"path"
	"strings"
)

// CompileURL resolves p against the route base. Absolute paths replace the
// base, "." and ".." segments are applied, and anything else is appended.
// An empty p yields the base itself.
func CompileURL(base, p string) string {
	base = strings.ReplaceAll(base, `\`, "/")
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join("/", base, p)
}
