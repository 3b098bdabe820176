// Package api holds the OpenAPI description of the HTTP interface.
package api

import _ "embed"

// OpenAPI is the YAML source of the API description.
//
//go:embed openapi.yaml
var OpenAPI []byte
