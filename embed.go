package sakhi

import "embed"

// TemplateFS holds the HTML templates, split into layout, pages and partials.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS holds the scripts and styles served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
