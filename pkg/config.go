package buildstamp

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// TargetType selects the representation written by an output target.
type TargetType string

const (
	TargetText           TargetType = "text"
	TargetJSON           TargetType = "json"
	TargetModule         TargetType = "module"
	TargetGo             TargetType = "go"
	TargetYAML           TargetType = "yaml"
	TargetPackageManager TargetType = "packageManager"
	TargetS3             TargetType = "s3"
)

// Target is one configured output. Which fields apply depends on Type:
// file types use File, packageManager uses Dir and Manifest, s3 uses Bucket,
// Key and Region.
type Target struct {
	Type     TargetType `mapstructure:"type" json:"type" yaml:"type" validate:"required,oneof=text json module go yaml packageManager s3"`
	File     string     `mapstructure:"file" json:"file,omitempty" yaml:"file,omitempty"`
	Dir      string     `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
	Manifest string     `mapstructure:"manifest" json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Bucket   string     `mapstructure:"bucket" json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Key      string     `mapstructure:"key" json:"key,omitempty" yaml:"key,omitempty"`
	Region   string     `mapstructure:"region" json:"region,omitempty" yaml:"region,omitempty"`
}

// Destination describes where the target writes, for logs and summaries.
func (t Target) Destination() string {
	switch t.Type {
	case TargetPackageManager:
		return filepath.Join(t.packageDir(), t.manifest())
	case TargetS3:
		return "s3://" + t.Bucket + "/" + t.Key
	default:
		return t.File
	}
}

// LocalPath returns the file touched by the target, or "" for remote targets.
func (t Target) LocalPath() string {
	if t.Type == TargetS3 {
		return ""
	}
	return t.Destination()
}

func (t Target) packageDir() string {
	if t.Dir == "" {
		return "."
	}
	return t.Dir
}

func (t Target) manifest() string {
	if t.Manifest == "" {
		return DefaultManifest
	}
	return t.Manifest
}

// InputConfig configures the optional remote build-number source.
type InputConfig struct {
	URL         string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Incremental bool          `mapstructure:"incremental"`
}

// GitConfig enables committing and tagging after a full build.
type GitConfig struct {
	Commit      bool   `mapstructure:"commit"`
	Tag         bool   `mapstructure:"tag"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email" validate:"omitempty,email"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Paths    []string      `mapstructure:"paths"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

// Config is the buildstamp configuration file.
type Config struct {
	Source string      `mapstructure:"source" validate:"required"`
	Input  InputConfig `mapstructure:"input"`
	Output []Target    `mapstructure:"output" validate:"dive"`
	Git    GitConfig   `mapstructure:"git"`
	Log    LogConfig   `mapstructure:"log"`
	Watch  WatchConfig `mapstructure:"watch"`
}

const (
	DefaultSource      = "VERSION"
	DefaultConfigName  = "buildstamp"
	DefaultDebounce    = 500 * time.Millisecond
	defaultAuthorName  = "buildstamp"
	defaultAuthorEmail = "buildstamp@users.noreply.github.com"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateTarget, Target{})
	return v
}

// validateTarget requires the fields each target type depends on.
func validateTarget(sl validator.StructLevel) {
	t := sl.Current().Interface().(Target)
	switch t.Type {
	case TargetText, TargetJSON, TargetModule, TargetGo, TargetYAML:
		if t.File == "" {
			sl.ReportError(t.File, "File", "file", "required_for_type", string(t.Type))
		}
	case TargetS3:
		if t.Bucket == "" {
			sl.ReportError(t.Bucket, "Bucket", "bucket", "required_for_type", string(t.Type))
		}
		if t.Key == "" {
			sl.ReportError(t.Key, "Key", "key", "required_for_type", string(t.Type))
		}
	}
}

// Validate checks the configuration for missing or inconsistent settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Git.Tag && !c.Git.Commit {
		return errors.New("invalid config: git.tag requires git.commit")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", DefaultSource)
	v.SetDefault("input.url", "")
	v.SetDefault("input.timeout", DefaultRemoteTimeout)
	v.SetDefault("input.incremental", false)
	v.SetDefault("git.commit", false)
	v.SetDefault("git.tag", false)
	v.SetDefault("git.author_name", defaultAuthorName)
	v.SetDefault("git.author_email", defaultAuthorEmail)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("watch.debounce", DefaultDebounce)
}

// LoadConfig reads the configuration. With an empty path it looks for
// buildstamp.{json,yaml,yml} in dir and falls back to defaults when none
// exists; an explicit path must exist. BUILDSTAMP_* environment variables
// override file values (BUILDSTAMP_INPUT_URL for input.url).
func LoadConfig(path, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("BUILDSTAMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewController wires a Store and Controller from the configuration. extra
// options are applied after the configured ones.
func (c *Config) NewController(logger zerolog.Logger, extra ...ControllerOption) *Controller {
	storeOpts := []StoreOption{WithStoreLogger(logger)}
	if c.Input.URL != "" {
		storeOpts = append(storeOpts, WithRemoteSource(NewRemoteSource(c.Input.URL, c.Input.Timeout)))
	}
	store := NewStore(c.Source, storeOpts...)

	opts := []ControllerOption{
		WithTargets(c.Output...),
		WithIncrementalEnrichment(c.Input.Incremental),
		WithLogger(logger),
	}
	if c.Git.Commit {
		opts = append(opts, WithGitStamper(&GitStamper{
			Dir:         filepath.Dir(c.Source),
			Tag:         c.Git.Tag,
			AuthorName:  c.Git.AuthorName,
			AuthorEmail: c.Git.AuthorEmail,
		}))
	}
	return NewController(store, append(opts, extra...)...)
}
