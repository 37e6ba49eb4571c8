package runner

import (
	"fmt"
	"net/url"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Account is one portal login to explore.
type Account struct {
	Label    string `yaml:"label" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Username string `yaml:"username"`
	Password string `yaml:"password" validate:"required_with=Username"`
}

// HasCredentials reports whether the account needs a login step.
func (a Account) HasCredentials() bool {
	return a.Username != ""
}

// NewAccount builds and validates a single account. An empty label
// defaults to the URL's host.
func NewAccount(label, rawURL, username, password string) (Account, error) {
	a := Account{Label: label, URL: rawURL, Username: username, Password: password}
	if a.Label == "" {
		if u, err := url.Parse(rawURL); err == nil {
			a.Label = u.Hostname()
		}
	}
	if err := validate.Struct(a); err != nil {
		return Account{}, fmt.Errorf("invalid account: %w", err)
	}
	return a, nil
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadAccounts reads a YAML accounts file. ${VAR} references are expanded
// from the environment before parsing so passwords can stay out of the
// file.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return ParseAccounts([]byte(os.ExpandEnv(string(data))))
}

// ParseAccounts decodes and validates accounts YAML.
func ParseAccounts(data []byte) ([]Account, error) {
	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts defined")
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid accounts: %w", err)
	}

	seen := make(map[string]bool, len(f.Accounts))
	for _, a := range f.Accounts {
		if seen[a.Label] {
			return nil, fmt.Errorf("invalid accounts: duplicate label %q", a.Label)
		}
		seen[a.Label] = true
	}
	return f.Accounts, nil
}
