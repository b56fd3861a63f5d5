package repository

// Option applies a configuration option to a durable store.
type Option func(*storeOptions)

type storeOptions struct {
	prefix        string
	schemaVersion int
}

func defaultStoreOptions() storeOptions {
	return storeOptions{prefix: "gridstat", schemaVersion: SchemaVersion}
}

// WithKeyPrefix namespaces redis keys and postgres tables.
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithSchemaVersion overrides the schema version checked on open.
func WithSchemaVersion(v int) Option {
	return func(o *storeOptions) {
		if v > 0 {
			o.schemaVersion = v
		}
	}
}
