package web

import "embed"

// Templates embeds the HTML templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds static assets served under /static/.
//
//go:embed static/**/*
var Static embed.FS
