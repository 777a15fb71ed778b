package config

import (
	"errors"
	"fmt"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	defaultScopes        = []string{"openid", "profile"}
	defaultPostLoginPath = "/me"
)

// Environment represents one entry of the environment table: an OIDC issuer, its client registration and the
// resource API to aggregate data from
type Environment struct {
	Issuer          string   `yaml:"issuer"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    Secret   `yaml:"client_secret"`
	RedirectURI     string   `yaml:"redirect_uri"`
	ResourceAPIBase string   `yaml:"resource_api_base"`
	Scopes          []string `yaml:"scopes"`
	Claims          []string `yaml:"claims"`
	UsePKCE         bool     `yaml:"use_pkce"`
	PostLoginPath   string   `yaml:"post_login_path"`

	// ClockToleranceSeconds is required and has no default
	ClockToleranceSeconds *int `yaml:"clock_tolerance_seconds"`
}

// Secret is a string that is redacted whenever it gets printed
type Secret string

// String redacts the secret
func (Secret) String() string {
	return "[REDACTED]"
}

// GoString redacts the secret in %#v output
func (secret Secret) GoString() string {
	return secret.String()
}

// LoadEnvironments reads the YAML environment table at path and applies defaults to every entry
func LoadEnvironments(path string) (map[string]*Environment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read environment table: %w", err)
	}
	return ParseEnvironments(raw)
}

// ParseEnvironments decodes a YAML environment table and applies defaults to every entry
func ParseEnvironments(raw []byte) (map[string]*Environment, error) {
	var table struct {
		Environments map[string]*Environment `yaml:"environments"`
	}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("could not decode environment table: %w", err)
	}
	if len(table.Environments) == 0 {
		return nil, errors.New("the environment table is empty")
	}
	for name, env := range table.Environments {
		if env == nil {
			return nil, fmt.Errorf("environment '%s' is empty", name)
		}
		env.applyDefaults()
	}
	return table.Environments, nil
}

func (env *Environment) applyDefaults() {
	if len(env.Scopes) == 0 {
		env.Scopes = append([]string(nil), defaultScopes...)
	}
	if env.PostLoginPath == "" {
		env.PostLoginPath = defaultPostLoginPath
	}
	env.ResourceAPIBase = strings.TrimRight(env.ResourceAPIBase, "/")
}

// Validate checks that all required fields of the environment are set
func (env *Environment) Validate() error {
	var missing []string
	if env.Issuer == "" {
		missing = append(missing, "issuer")
	}
	if env.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if env.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if env.ResourceAPIBase == "" {
		missing = append(missing, "resource_api_base")
	}
	if env.ClockToleranceSeconds == nil {
		missing = append(missing, "clock_tolerance_seconds")
	}
	if len(missing) > 0 {
		return fmt.Errorf("environment is missing required fields: %s", strings.Join(missing, ", "))
	}

	var retErr *multierror.Error
	if *env.ClockToleranceSeconds < 0 {
		retErr = multierror.Append(retErr, errors.New("clock_tolerance_seconds must not be negative"))
	}
	for _, field := range []struct{ name, raw string }{
		{"issuer", env.Issuer},
		{"redirect_uri", env.RedirectURI},
		{"resource_api_base", env.ResourceAPIBase},
	} {
		parsed, err := url.Parse(field.raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			retErr = multierror.Append(retErr, fmt.Errorf("%s '%s' is not an absolute http(s) URL", field.name, field.raw))
		}
	}
	if !strings.HasPrefix(env.PostLoginPath, "/") {
		retErr = multierror.Append(retErr, fmt.Errorf("post_login_path '%s' has to be an absolute path", env.PostLoginPath))
	}
	return retErr.ErrorOrNil()
}

// ClockTolerance returns the allowed clock skew when validating ID token timestamps
func (env *Environment) ClockTolerance() time.Duration {
	if env.ClockToleranceSeconds == nil {
		return 0
	}
	return time.Duration(*env.ClockToleranceSeconds) * time.Second
}

// RedirectPath returns the path component of the redirect URI; the callback handler is mounted there
func (env *Environment) RedirectPath() string {
	parsed, err := url.Parse(env.RedirectURI)
	if err != nil || parsed.Path == "" {
		return "/auth/cb"
	}
	return parsed.Path
}
