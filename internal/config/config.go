// Package config loads and validates the runtime configuration from CUE.
//
// The schema ships embedded in the binary; a user file is compiled,
// unified with the schema (which both validates it and fills defaults),
// and decoded into Config. Errors carry a code and, where CUE provides
// one, a file position.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"

	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for LoadError.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeParse    = "CONFIG_PARSE"
	ErrCodeInvalid  = "CONFIG_INVALID"
)

// LoadError is a structured configuration error.
type LoadError struct {
	Code    string
	Message string
	Pos     string // "file:line:col" when CUE supplies a position
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err (possibly wrapped) is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Config is the decoded runtime configuration.
type Config struct {
	FrameArenaKB int    `json:"frameArenaKB"`
	Checks       bool   `json:"checks"`
	LogLevel     string `json:"logLevel"`
	CapturePath  string `json:"capturePath"`
}

// Default returns the configuration produced by an empty user file.
func Default() Config {
	return Config{
		FrameArenaKB: 256,
		Checks:       true,
		LogLevel:     "info",
	}
}

// FrameArenaBytes converts the configured arena size to bytes.
func (c Config) FrameArenaBytes() int {
	return c.FrameArenaKB << 10
}

// SlogLevel maps the configured level string to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads and validates the CUE config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return Parse(data, path)
}

// Parse validates and decodes CUE config source. filename is used in
// error positions only.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The embedded schema is compiled at every load; failure here is
		// a build defect, not user error.
		return Config{}, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("embedded schema: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return Config{}, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("embedded schema: %v", err)}
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, cueLoadError(ErrCodeParse, err)
	}

	unified := def.Unify(user)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueLoadError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, cueLoadError(ErrCodeInvalid, err)
	}
	return cfg, nil
}

func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	for _, e := range cueerrors.Errors(err) {
		if pos := e.Position(); pos.IsValid() {
			le.Pos = pos.String()
			le.Message = e.Error()
			break
		}
	}
	return le
}
