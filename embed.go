package watchme

import "embed"

// EmbeddedFallbackFS is served when the watched document cannot be read and
// for every path other than the virtual root.
//
//go:embed fallback
var EmbeddedFallbackFS embed.FS
