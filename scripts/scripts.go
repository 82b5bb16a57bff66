// Package scripts embeds the built-in Risor scripts.
package scripts

import "embed"

// FS holds every built-in .risor file at its root.
//
//go:embed *.risor
var FS embed.FS
