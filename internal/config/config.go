package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file read from the workspace root when --config is not given.
const FileName = ".jobctx.yml"

// Config captures action options sourced from config files, action inputs or flags.
type Config struct {
	Token           string `yaml:"token"`
	WorkflowContext string `yaml:"workflow_context"`
	Matrix          string `yaml:"matrix"`
	JobName         string `yaml:"job_name"`
	WorkflowFile    string `yaml:"workflow_file"`

	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RetryMultiplier float64       `yaml:"retry_multiplier"`

	IgnoreDeploymentPermissionErrors bool `yaml:"ignore_deployment_permission_errors"`
	ExportEnv                        bool `yaml:"export_env"`

	Format   string `yaml:"format"`
	LogLevel string `yaml:"log_level"`
}

const (
	// FormatLog emits outputs as workflow file commands and log lines.
	FormatLog = "log"
	// FormatJSON additionally prints the outputs as JSON on stdout.
	FormatJSON = "json"
)

// Default returns the baseline configuration used when nothing else specifies values.
func Default() Config {
	return Config{
		InitialDelay:                     2 * time.Second,
		MaxAttempts:                      10,
		RetryDelay:                       2 * time.Second,
		RetryMultiplier:                  1.0,
		IgnoreDeploymentPermissionErrors: true,
		ExportEnv:                        true,
		Format:                           FormatLog,
		LogLevel:                         "info",
	}
}

// InputError reports an action input or flag that could not be used.
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("input %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("input %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Load reads the config file at path, or FileName under root when path is empty.
// A missing default file is ignored; a missing explicit file is an error.
func Load(root, path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %q", path)
	}

	// keys missing from the file keep their defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), errors.Wrapf(err, "parse config %q", path)
	}
	return cfg, nil
}

// Input names as declared by the action.
const (
	InputToken                = "token"
	InputWorkflowContext      = "workflow-context"
	InputMatrix               = "matrix"
	InputMatrixHidden         = "#matrix"
	InputJobName              = "job-name"
	InputWorkflowFile         = "workflow-file"
	InputInitialDelay         = "initial-delay"
	InputMaxAttempts          = "max-attempts"
	InputRetryDelay           = "retry-delay"
	InputRetryMultiplier      = "retry-multiplier"
	InputIgnoreDeploymentPerm = "ignore-deployment-permission-errors"
	InputExportEnv            = "export-env"
)

// NewInputSource returns a viper instance reading action inputs from the
// INPUT_<NAME> environment variables set by the runner.
func NewInputSource() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("INPUT")
	v.AutomaticEnv()
	return v
}

// ApplyInputs mutates cfg with every action input that is set and non-empty.
func ApplyInputs(cfg *Config, v *viper.Viper) error {
	input := func(name string) (string, bool) {
		raw := strings.TrimSpace(v.GetString(name))
		return raw, raw != ""
	}

	if raw, ok := input(InputToken); ok {
		cfg.Token = raw
	}
	if raw, ok := input(InputWorkflowContext); ok {
		cfg.WorkflowContext = raw
	}
	if raw, ok := input(InputMatrixHidden); ok {
		cfg.Matrix = raw
	}
	if raw, ok := input(InputMatrix); ok {
		cfg.Matrix = raw
	}
	if raw, ok := input(InputJobName); ok {
		cfg.JobName = raw
	}
	if raw, ok := input(InputWorkflowFile); ok {
		cfg.WorkflowFile = raw
	}

	if raw, ok := input(InputInitialDelay); ok {
		d, err := ParseDelay(InputInitialDelay, raw)
		if err != nil {
			return err
		}
		cfg.InitialDelay = d
	}
	if raw, ok := input(InputRetryDelay); ok {
		d, err := ParseDelay(InputRetryDelay, raw)
		if err != nil {
			return err
		}
		cfg.RetryDelay = d
	}
	if raw, ok := input(InputMaxAttempts); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &InputError{Field: InputMaxAttempts, Value: raw, Err: errors.New("must be an integer")}
		}
		cfg.MaxAttempts = n
	}
	if raw, ok := input(InputRetryMultiplier); ok {
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &InputError{Field: InputRetryMultiplier, Value: raw, Err: errors.New("must be a number")}
		}
		cfg.RetryMultiplier = m
	}
	if raw, ok := input(InputIgnoreDeploymentPerm); ok {
		b, err := ParseBool(InputIgnoreDeploymentPerm, raw)
		if err != nil {
			return err
		}
		cfg.IgnoreDeploymentPermissionErrors = b
	}
	if raw, ok := input(InputExportEnv); ok {
		b, err := ParseBool(InputExportEnv, raw)
		if err != nil {
			return err
		}
		cfg.ExportEnv = b
	}
	return nil
}

// ParseDelay accepts a Go duration ("2s", "500ms") or a bare number of seconds.
func ParseDelay(field, raw string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs*float64(time.Second) > math.MaxInt64 {
			return 0, &InputError{Field: field, Value: raw, Err: errors.New("must be a finite number of seconds")}
		}
		if secs < 0 {
			return 0, &InputError{Field: field, Value: raw, Err: errors.New("must not be negative")}
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &InputError{Field: field, Value: raw, Err: errors.New("must be a duration such as 2s or a number of seconds")}
	}
	if d < 0 {
		return 0, &InputError{Field: field, Value: raw, Err: errors.New("must not be negative")}
	}
	return d, nil
}

// ParseBool accepts the YAML 1.2 core booleans used in workflow files.
func ParseBool(field, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, &InputError{Field: field, Value: raw, Err: errors.New("must be true or false")}
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Token.Set {
		cfg.Token = flags.Token.Value
	}
	if flags.WorkflowContext.Set {
		cfg.WorkflowContext = flags.WorkflowContext.Value
	}
	if flags.Matrix.Set {
		cfg.Matrix = flags.Matrix.Value
	}
	if flags.JobName.Set {
		cfg.JobName = flags.JobName.Value
	}
	if flags.WorkflowFile.Set {
		cfg.WorkflowFile = flags.WorkflowFile.Value
	}
	if flags.InitialDelay.Set {
		cfg.InitialDelay = flags.InitialDelay.Value
	}
	if flags.MaxAttempts.Set {
		cfg.MaxAttempts = flags.MaxAttempts.Value
	}
	if flags.RetryDelay.Set {
		cfg.RetryDelay = flags.RetryDelay.Value
	}
	if flags.RetryMultiplier.Set {
		cfg.RetryMultiplier = flags.RetryMultiplier.Value
	}
	if flags.IgnoreDeploymentPermissionErrors.Set {
		cfg.IgnoreDeploymentPermissionErrors = flags.IgnoreDeploymentPermissionErrors.Value
	}
	if flags.ExportEnv.Set {
		cfg.ExportEnv = flags.ExportEnv.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.LogLevel.Set {
		cfg.LogLevel = flags.LogLevel.Value
	}
}

// Validate checks the merged configuration. The token is checked separately
// since only commands talking to GitHub need it.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return &InputError{Field: InputMaxAttempts, Value: strconv.Itoa(c.MaxAttempts), Err: errors.New("must be at least 1")}
	}
	if c.InitialDelay < 0 {
		return &InputError{Field: InputInitialDelay, Value: c.InitialDelay.String(), Err: errors.New("must not be negative")}
	}
	if c.RetryDelay < 0 {
		return &InputError{Field: InputRetryDelay, Value: c.RetryDelay.String(), Err: errors.New("must not be negative")}
	}
	if c.RetryMultiplier < 1 {
		return &InputError{Field: InputRetryMultiplier, Value: strconv.FormatFloat(c.RetryMultiplier, 'f', -1, 64), Err: errors.New("must be at least 1")}
	}
	switch strings.ToLower(c.Format) {
	case FormatLog, FormatJSON:
	default:
		return &InputError{Field: "format", Value: c.Format, Err: errors.Newf("unsupported format, expected %s or %s", FormatLog, FormatJSON)}
	}
	return nil
}

// RequireToken fails when no token was provided through any source.
func (c Config) RequireToken() error {
	if strings.TrimSpace(c.Token) == "" {
		return &InputError{Field: InputToken, Err: errors.New("input required and not supplied")}
	}
	return nil
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Token                            StringFlag
	WorkflowContext                  StringFlag
	Matrix                           StringFlag
	JobName                          StringFlag
	WorkflowFile                     StringFlag
	InitialDelay                     DurationFlag
	MaxAttempts                      IntFlag
	RetryDelay                       DurationFlag
	RetryMultiplier                  FloatFlag
	IgnoreDeploymentPermissionErrors BoolFlag
	ExportEnv                        BoolFlag
	Format                           StringFlag
	LogLevel                         StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// FloatFlag represents a float flag and whether it was set.
type FloatFlag struct {
	Value float64
	Set   bool
}

// DurationFlag represents a duration flag and whether it was set.
type DurationFlag struct {
	Value time.Duration
	Set   bool
}
