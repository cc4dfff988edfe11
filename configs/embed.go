// Package configs embeds the annotated configuration template written by
// `pdfrag config init`.
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration. Its values match
// config.NewConfig.
//
//go:embed config.example.yaml
var ConfigTemplate string
