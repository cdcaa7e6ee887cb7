// Package configs embeds the default configuration template. It ships
// inside the binary so `archrag config init` works in every
// distribution (go install, binary releases, containers).
package configs

import _ "embed"

// DefaultYAML is the annotated default configuration. `archrag config
// init` writes it to ~/.archrag/config.yaml as a starting point; the
// built-in defaults in internal/config apply when no file exists.
//
//go:embed default.yaml
var DefaultYAML string
