package sqlinline

import _ "embed"

// Schema creates every table the service uses. It is idempotent.
//
//go:embed schema.sql
var Schema string
