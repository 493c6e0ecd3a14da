package web

import (
	"embed"
)

// static holds the embedded remote control page.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
