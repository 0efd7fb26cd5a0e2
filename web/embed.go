// Package web embeds the chat widget for single-binary distribution.
package web

import "embed"

// Assets contains the widget's static files under static/.
//
//go:embed all:static
var Assets embed.FS
