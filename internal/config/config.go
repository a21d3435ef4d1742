package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Defaults mirrored from the portal scraper's historical behavior.
const (
	DefaultTimezone  = "America/Toronto"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.85 Safari/537.36 Edg/90.0.818.46"
)

var (
	// ErrCorruptConfig is returned when a config CSV row does not have
	// exactly two fields.
	ErrCorruptConfig = errors.New("config file corrupt")
	// ErrBadRunMode is returned for a run_mode other than Interactive or
	// Automatic.
	ErrBadRunMode = errors.New("bad run mode")
)

// Config is the resolved, immutable-after-load option set for one account.
// Precedence during construction: CLI override > config file > default.
type Config struct {
	// Site selects the portal deployment: "cac" (CloudAtCost) or "swivel".
	Site     string
	SiteFile string // optional YAML override for portal endpoints

	Timezone  string
	UserAgent string

	// Credentials. TOTPSecret is the base32 secret used to compute the
	// second-factor code in Automatic mode.
	Username   string
	Password   string
	TOTPSecret string

	RunMode     string // Interactive | Automatic
	Interactive bool

	UseCookies    bool
	SaveHTML      bool
	SaveCSV       bool
	Silent        bool
	AddDateTime   bool
	PopulateSheet bool

	// SheetID addresses the spreadsheet by ID; Worksheet names the tab.
	SheetID     string
	Worksheet   string
	GoogleCreds string

	// Year, when set, restricts parsing to transactions whose rendered
	// timestamp starts with it.
	Year string

	SaveFilePrefix string

	FileNumber string
	DateTime   string

	ConfigFile          string
	CookieFile          string
	SummaryHTMLFile     string
	TransactionHTMLFile string
	CSVFile             string

	// ConfigModified is set when the config file is newer than the cookie
	// file; the stale cookie file has been removed in that case.
	ConfigModified bool

	// Extra preserves keys this build does not interpret, so account files
	// written for other revisions of the tool keep loading.
	Extra map[string]string
}

// New returns a Config populated with defaults for the given account file
// number ("" for the single-account layout, "1".."9" for batch configs).
func New(fileNumber string) *Config {
	now := time.Now()
	c := &Config{
		Site:        "cac",
		Timezone:    DefaultTimezone,
		UserAgent:   DefaultUserAgent,
		RunMode:     "Interactive",
		SaveCSV:     true,
		AddDateTime: true,
		SheetID:     "",
		GoogleCreds: "google_creds.json",
		FileNumber:  fileNumber,
		DateTime:    now.Format("2006-01-02 15-04"),
	}
	if fileNumber == "" {
		c.ConfigFile = "cac-config.csv"
		c.CookieFile = "cac-cookie.bin"
		c.Worksheet = "Sheet1"
	} else {
		c.ConfigFile = "config" + fileNumber + ".csv"
		c.CookieFile = "cookie" + fileNumber + ".bin"
		c.Worksheet = "Sheet" + fileNumber
	}
	return c
}

// Load builds the configuration for one account: defaults, then the config
// file, then CLI overrides, then validation and filename resolution.
func Load(fileNumber string, overrides map[string]string) (*Config, error) {
	c := New(fileNumber)
	c.invalidateStaleCookies()

	if err := c.applyFile(); err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if err := c.set(key, value); err != nil {
			return nil, err
		}
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// DiscoverAccounts returns a Config per numbered config file present
// (config1.csv .. config9.csv). When none exist, a single default-layout
// account is returned so the tool still runs from cac-config.csv or pure
// defaults.
func DiscoverAccounts(overrides map[string]string) ([]*Config, error) {
	var configs []*Config
	for n := 1; n <= 9; n++ {
		number := fmt.Sprintf("%d", n)
		if _, err := os.Stat("config" + number + ".csv"); err != nil {
			continue
		}
		c, err := Load(number, overrides)
		if err != nil {
			return nil, fmt.Errorf("config%s.csv: %w", number, err)
		}
		configs = append(configs, c)
	}
	if len(configs) > 0 {
		return configs, nil
	}
	c, err := Load("", overrides)
	if err != nil {
		return nil, err
	}
	return []*Config{c}, nil
}

// invalidateStaleCookies removes the cookie file when the config file has
// been modified after it. A missing file on either side is fine.
func (c *Config) invalidateStaleCookies() {
	configInfo, err := os.Stat(c.ConfigFile)
	if err != nil {
		return
	}
	cookieInfo, err := os.Stat(c.CookieFile)
	if err != nil {
		return
	}
	if configInfo.ModTime().After(cookieInfo.ModTime()) {
		os.Remove(c.CookieFile)
		c.ConfigModified = true
	}
}

// applyFile loads the key,value CSV config file. A missing file is not an
// error. Reading stops at the first blank or comment line.
func (c *Config) applyFile() error {
	f, err := os.Open(c.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return c.applyReader(f)
}

func (c *Config) applyReader(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptConfig, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			return nil
		}
		if len(row) == 1 && strings.HasPrefix(strings.TrimSpace(row[0]), "#") {
			return nil
		}
		if len(row) != 2 {
			return fmt.Errorf("%w: %s", ErrCorruptConfig, c.ConfigFile)
		}
		if err := c.set(row[0], row[1]); err != nil {
			return err
		}
	}
}

// set applies one key,value pair. The literal strings "True" and "False"
// map to booleans everywhere a boolean key is expected.
func (c *Config) set(key, value string) error {
	truthy := value == "True"
	switch key {
	case "site":
		c.Site = value
	case "siteFile":
		c.SiteFile = value
	case "timezone":
		c.Timezone = value
	case "useragent":
		c.UserAgent = value
	case "username":
		c.Username = value
	case "password":
		c.Password = value
	case "auth_2fa":
		c.TOTPSecret = value
	case "run_mode":
		c.RunMode = value
	case "useCookies":
		c.UseCookies = truthy
	case "saveHTML":
		c.SaveHTML = truthy
	case "saveCSV":
		c.SaveCSV = truthy
	case "silentMode":
		c.Silent = truthy
	case "addDateTime":
		c.AddDateTime = truthy
	case "populategooglesheet":
		c.PopulateSheet = truthy
	case "googleSheet":
		c.SheetID = value
	case "googleWorksheet":
		c.Worksheet = value
	case "googleCreds":
		c.GoogleCreds = value
	case "year":
		c.Year = value
	case "saveFilePrefix":
		c.SaveFilePrefix = value
	default:
		if c.Extra == nil {
			c.Extra = map[string]string{}
		}
		c.Extra[key] = value
	}
	return nil
}

// finalize validates the run mode and resolves output filenames.
func (c *Config) finalize() error {
	switch c.RunMode {
	case "Interactive":
		c.Interactive = true
	case "Automatic":
		c.Interactive = false
		c.UseCookies = true
	default:
		return fmt.Errorf("%w: %q", ErrBadRunMode, c.RunMode)
	}

	if c.AddDateTime {
		c.SummaryHTMLFile = "Summary " + c.DateTime + ".html"
		c.TransactionHTMLFile = "Transactions " + c.DateTime + ".html"
		c.CSVFile = "Transactions " + c.DateTime + ".csv"
	} else {
		c.SummaryHTMLFile = "Summary.html"
		c.TransactionHTMLFile = "Transactions.html"
		c.CSVFile = "Transactions.csv"
	}

	switch {
	case c.SaveFilePrefix != "":
		c.SummaryHTMLFile = c.SaveFilePrefix + c.SummaryHTMLFile
		c.TransactionHTMLFile = c.SaveFilePrefix + c.TransactionHTMLFile
		c.CSVFile = c.SaveFilePrefix + c.CSVFile
	case c.FileNumber != "":
		c.SummaryHTMLFile = c.FileNumber + " " + c.SummaryHTMLFile
		c.TransactionHTMLFile = c.FileNumber + " " + c.TransactionHTMLFile
		c.CSVFile = c.FileNumber + " " + c.CSVFile
	}

	return nil
}
