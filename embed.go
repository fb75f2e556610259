package mockprep

import _ "embed"

//go:embed schema.sql
var SchemaSQL []byte

//go:embed openapi.yaml
var OpenAPISpec []byte
