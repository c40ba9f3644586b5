package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notepress/internal/assets"
	"github.com/starford/notepress/internal/migrate"
	"github.com/starford/notepress/internal/pipeline"
	"github.com/starford/notepress/internal/publisher"
	"github.com/starford/notepress/internal/source"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Site   SiteConfig        `yaml:"site"`
	Vault  VaultConfig       `yaml:"vault"`
	Source SourceConfig      `yaml:"source"`
	Git    GitConfig         `yaml:"git"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Git.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig locates the blog project that receives posts and assets.
type SiteConfig struct {
	Root             string   `yaml:"root"`
	PostsDir         string   `yaml:"posts_dir"`
	AssetsDir        string   `yaml:"assets_dir"`
	AssetURLPrefix   string   `yaml:"asset_url_prefix"`
	ExternalPrefixes []string `yaml:"external_prefixes"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.PostsDir, validation.Required, validation.By(relativePath)),
		validation.Field(&c.AssetsDir, validation.Required, validation.By(relativePath)),
		validation.Field(&c.AssetURLPrefix, validation.Required, validation.By(func(any) error {
			if !strings.HasPrefix(c.AssetURLPrefix, "/") || !strings.HasSuffix(c.AssetURLPrefix, "/") {
				return validation.NewError("validation_url_prefix", "must start and end with /")
			}
			return nil
		})),
	)
}

// PostsPath returns the absolute posts directory.
func (c *SiteConfig) PostsPath() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.PostsDir))
}

// AssetsPath returns the absolute asset directory.
func (c *SiteConfig) AssetsPath() string {
	return filepath.Join(c.Root, filepath.FromSlash(c.AssetsDir))
}

func relativePath(v any) error {
	p, _ := v.(string)
	if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(filepath.FromSlash(p)), "..") {
		return validation.NewError("validation_relative_path", "must be relative to site root")
	}
	return nil
}

// VaultConfig describes where a vault keeps its attachments.
type VaultConfig struct {
	AttachmentDirs  []string `yaml:"attachment_dirs"`
	ImageExtensions []string `yaml:"image_extensions"`
	AncestorDepth   int      `yaml:"ancestor_depth"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AttachmentDirs, validation.Each(validation.Required)),
		validation.Field(&c.ImageExtensions, validation.Each(validation.Required, validation.By(dotted))),
		validation.Field(&c.AncestorDepth, validation.Min(0), validation.Max(16)),
	)
}

// SourceConfig describes accepted notes.
type SourceConfig struct {
	Extensions        []string `yaml:"extensions"`
	FallbackEncodings []string `yaml:"fallback_encodings"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Required, validation.By(dotted))),
	); err != nil {
		return err
	}
	return source.ValidateEncodings(c.FallbackEncodings)
}

func dotted(v any) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, ".") {
		return validation.NewError("validation_extension", "must start with a dot")
	}
	return nil
}

// GitConfig controls pushing the site after a publish.
type GitConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Binary         string `yaml:"binary"`
	CommitTemplate string `yaml:"commit_template"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.CommitTemplate, validation.When(c.Enabled, validation.Required, validation.By(func(any) error {
			if strings.Count(c.CommitTemplate, "%s") != 1 {
				return validation.NewError("validation_commit_template", "must contain exactly one %s")
			}
			return nil
		}))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PipelineConfig returns the settings the publish pipeline runs with.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		AssetURLPrefix:   c.Site.AssetURLPrefix,
		ExternalPrefixes: c.Site.ExternalPrefixes,
		AttachmentDirs:   c.Vault.AttachmentDirs,
		ImageExtensions:  c.Vault.ImageExtensions,
		AncestorDepth:    c.Vault.AncestorDepth,
	}
}

// PublisherSettings returns the settings the publish service runs with.
func (c *Config) PublisherSettings() publisher.Settings {
	return publisher.Settings{
		SiteRoot:          c.Site.Root,
		PostsDir:          c.Site.PostsDir,
		AssetsDir:         c.Site.AssetsDir,
		SourceExtensions:  c.Source.Extensions,
		FallbackEncodings: c.Source.FallbackEncodings,
		CommitTemplate:    c.Git.CommitTemplate,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Site: SiteConfig{
			Root:             ".",
			PostsDir:         "pages/posts",
			AssetsDir:        "public/assets",
			AssetURLPrefix:   "/assets/",
			ExternalPrefixes: []string{"/images/"},
		},
		Vault: VaultConfig{
			AttachmentDirs:  append([]string(nil), assets.DefaultAttachmentDirs...),
			ImageExtensions: append([]string(nil), migrate.DefaultImageExtensions...),
			AncestorDepth:   assets.DefaultAncestorDepth,
		},
		Source: SourceConfig{
			Extensions:        append([]string(nil), source.DefaultExtensions...),
			FallbackEncodings: []string{"gbk"},
		},
		Git: GitConfig{
			Enabled:        true,
			Binary:         "git",
			CommitTemplate: "feat: publish %s",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
