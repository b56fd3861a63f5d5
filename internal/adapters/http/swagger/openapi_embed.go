package swagger

import _ "embed"

// OpenAPI is the gridstat API document served at SpecPath.
//
//go:embed openapi.yaml
var OpenAPI []byte
