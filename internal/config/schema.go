package config

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema constrains the loaded configuration. Durations are nanoseconds, as
// encoding/json renders time.Duration.
const schema = `
#Config: {
	server: {
		host: string
		port: int & >0 & <=65535
		read_timeout: int & >=0
		write_timeout: int & >=0
		max_request_bytes: int & >0
		...
	}
	render: {
		image: string & !=""
		temp_dir: string & !=""
		output_dir: string & !=""
		url_prefix: string
		quality: "l" | "m" | "h" | "p" | "k"
		scene_timeout: int & >=0
		memory_limit_mb: int & >=0
		cpu_limit: number & >=0
		max_concurrent_batches: int & >=1 & <=64
		queue_size: int & >=1
		thumbnail_quality: int & >=1 & <=100
		thumbnail_width: int & >=16
		...
	}
	retention: {
		enabled: bool
		schedule: string
		max_age: int & >0
		...
	}
	database: {
		type: "sqlite" | "postgres"
		...
	}
	logging: {
		level: "trace" | "debug" | "info" | "warn" | "error" | "off" | ""
		format: "text" | "json"
		...
	}
	generator: {
		provider: "gemini" | "none"
		...
	}
	projects: {
		backend: "memory" | "redis"
		redis_db: int & >=0
		...
	}
	metrics: {
		enabled: bool
		path: =~"^/"
		...
	}
	...
}
`

// ValidateSchema checks config against the declarative schema.
func ValidateSchema(config *Config) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	ctx := cuecontext.New()
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("invalid config schema: %w", err)
	}

	value := ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return fmt.Errorf("failed to compile config: %w", err)
	}

	return def.Unify(value).Validate(cue.Concrete(true))
}
