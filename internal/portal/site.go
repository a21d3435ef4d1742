package portal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Site describes one wallet portal deployment: its endpoints and the names
// the login and second-factor forms use in its markup.
type Site struct {
	Name          string `yaml:"name"`
	BaseURL       string `yaml:"base_url"`
	LoginForm     string `yaml:"login_form"`
	EmailField    string `yaml:"email_field"`
	PasswordField string `yaml:"password_field"`
	AuthForm      string `yaml:"auth_form"`
	AuthCodeField string `yaml:"auth_code_field"`
}

// The two known deployments. A YAML override file can replace either for
// mirror installs that move endpoints around.
func builtinSites() map[string]Site {
	return map[string]Site{
		"cac": {
			Name:    "cac",
			BaseURL: "https://wallet.cloudatcost.com/",
		},
		"swivel": {
			Name:    "swivel",
			BaseURL: "https://wallet.swivel.run/",
		},
	}
}

// SiteFor resolves a named built-in site, or loads a YAML site definition
// when overridePath is set. Missing form names fall back to the portal's
// stock markup names.
func SiteFor(name, overridePath string) (Site, error) {
	var site Site
	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return Site{}, fmt.Errorf("site override: %w", err)
		}
		if err := yaml.Unmarshal(data, &site); err != nil {
			return Site{}, fmt.Errorf("site override %s: %w", overridePath, err)
		}
		if site.BaseURL == "" {
			return Site{}, fmt.Errorf("site override %s: base_url required", overridePath)
		}
	} else {
		builtin, ok := builtinSites()[name]
		if !ok {
			return Site{}, fmt.Errorf("unknown site %q", name)
		}
		site = builtin
	}

	if site.LoginForm == "" {
		site.LoginForm = "login"
	}
	if site.EmailField == "" {
		site.EmailField = "email"
	}
	if site.PasswordField == "" {
		site.PasswordField = "password"
	}
	if site.AuthForm == "" {
		site.AuthForm = "authCheck"
	}
	if site.AuthCodeField == "" {
		site.AuthCodeField = "authCode"
	}
	return site, nil
}

// LoginURL is the credential form page.
func (s Site) LoginURL() string { return s.BaseURL + "login" }

// AuthURL is the second-factor page.
func (s Site) AuthURL() string { return s.BaseURL + "auth" }

// WalletURL is the wallet overview page.
func (s Site) WalletURL() string { return s.BaseURL + "wallet" }

// TransactionURL is the transaction history page.
func (s Site) TransactionURL() string { return s.BaseURL + "transaction" }
