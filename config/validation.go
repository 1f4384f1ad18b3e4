package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration is internally
// consistent. Credential presence is checked by the components that
// need the credential, so commands which never call the LLM can run
// without a Gemini key.
func ValidateConfig(cfg *Config) error {
	var errs []string

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		errs = append(errs, ValidationError{"DB_DRIVER", fmt.Sprintf("unknown driver %q (want sqlite or postgres)", cfg.DBDriver)}.Error())
	}
	if cfg.DBDSN == "" {
		errs = append(errs, ValidationError{"DB_DSN", "must not be empty"}.Error())
	}
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		errs = append(errs, ValidationError{"SERVER_PORT", fmt.Sprintf("%q is not a port number", cfg.ServerPort)}.Error())
	}
	if cfg.MatchThreshold < -1 || cfg.MatchThreshold > 1 {
		errs = append(errs, ValidationError{"MATCH_THRESHOLD", "cosine similarity must be within [-1, 1]"}.Error())
	}
	if cfg.IndexBasePath == "" {
		errs = append(errs, ValidationError{"INGREDIENT_INDEX_PATH", "must not be empty"}.Error())
	}
	if cfg.ArtifactsDir == "" {
		errs = append(errs, ValidationError{"ARTIFACTS_DIR", "must not be empty"}.Error())
	}
	if cfg.LLMTimeout <= 0 || cfg.EmbedTimeout <= 0 || cfg.FetchTimeout <= 0 {
		errs = append(errs, "timeouts must be positive")
	}
	if IsProduction() && cfg.JWTSecret == "" {
		errs = append(errs, ValidationError{"JWT_SECRET", "required in production"}.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
