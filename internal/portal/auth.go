package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"

	"minerledger/internal/config"
	"minerledger/internal/logger"
)

// State is where the login machine believes the session currently is. It is
// re-derived from the session's URL and status after every action.
type State int

const (
	StateUnauthenticated State = iota
	StateLoginForm
	StateSecondFactor
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoginForm:
		return "login-form"
	case StateSecondFactor:
		return "second-factor"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrLoginFormMissing          = errors.New("login form missing")
	ErrSecondFactorFormMissing   = errors.New("2fa form missing")
	ErrMissingSecondFactorSecret = errors.New("2fa secret not configured")
	ErrRetryBudgetExceeded       = errors.New("retry max exceeded")
	ErrPageNotFound              = errors.New("404: page not found")
	ErrInternalServerError       = errors.New("500: internal server error")
	ErrServiceUnavailable        = errors.New("502: website down for maintenance")
	ErrGatewayTimeout            = errors.New("504: gateway timeout")
	ErrTransactionsUnavailable   = errors.New("failed to load transactions")
)

// backoffSchedule is applied when the portal rejects a second-factor code,
// indexed by the current retry count and clamped to the table length.
var backoffSchedule = []time.Duration{
	2 * time.Second,
	30 * time.Second,
	31 * time.Second,
	31 * time.Second,
}

const (
	maxRetries       = 3
	loginRetryWait   = 30 * time.Second
	submitSettleWait = time.Second
)

// Authenticator drives the login/2FA machine for one account over one
// session. It is single-use and strictly sequential.
type Authenticator struct {
	cfg     *config.Config
	site    Site
	session Session

	prompter Prompter
	sleep    func(time.Duration)
	now      func() time.Time

	state State
}

// NewAuthenticator wires an authenticator over the given session.
func NewAuthenticator(cfg *config.Config, site Site, session Session) *Authenticator {
	return &Authenticator{
		cfg:      cfg,
		site:     site,
		session:  session,
		prompter: TerminalPrompter{},
		sleep:    time.Sleep,
		now:      time.Now,
		state:    StateUnauthenticated,
	}
}

// State reports the machine's current state.
func (a *Authenticator) State() State { return a.state }

// classify derives the machine state from the last observed URL and status.
// Fatal HTTP statuses short-circuit regardless of URL.
func (a *Authenticator) classify(url string, status int) (State, error) {
	switch status {
	case 404:
		return StateFailed, ErrPageNotFound
	case 500:
		return StateFailed, ErrInternalServerError
	case 502:
		return StateFailed, ErrServiceUnavailable
	case 504:
		return StateFailed, ErrGatewayTimeout
	}

	switch {
	case status == 200 && sameURL(url, a.site.BaseURL):
		return StateAuthenticated, nil
	case status == 200 && sameURL(url, a.site.LoginURL()):
		return StateLoginForm, nil
	case (status == 200 || status == 422) && sameURL(url, a.site.AuthURL()):
		return StateSecondFactor, nil
	}
	return StateUnauthenticated, nil
}

// Login runs the state machine until the session is authenticated or a
// terminal failure is reached.
func (a *Authenticator) Login(ctx context.Context) error {
	if a.cfg.UseCookies {
		if err := a.session.LoadCookies(a.cfg.CookieFile); err != nil && !os.IsNotExist(err) {
			logger.Warn(ctx, "Could not load cookies", "file", a.cfg.CookieFile, "error", err)
		}
	}

	retries := -1
	for {
		// A clean status resets the budget; anything else consumes it.
		if s := a.session.CurrentStatus(); s == 200 || s == 0 {
			retries = -1
		}
		retries++

		state, err := a.classify(a.session.CurrentURL(), a.session.CurrentStatus())
		if err != nil {
			a.state = StateFailed
			return err
		}
		a.state = state
		if state == StateAuthenticated {
			return nil
		}

		if retries > maxRetries {
			a.state = StateFailed
			return ErrRetryBudgetExceeded
		}
		if retries > 0 {
			logger.Info(ctx, "Retrying", "url", a.session.CurrentURL(),
				"status", a.session.CurrentStatus(), "retries", retries)
		}

		switch state {
		case StateUnauthenticated:
			if !a.cfg.Silent && a.session.CurrentURL() == "" {
				fmt.Println("Accessing", a.site.BaseURL)
			}
			if err := a.session.Navigate(a.site.BaseURL); err != nil {
				a.state = StateFailed
				return fmt.Errorf("navigate %s: %w", a.site.BaseURL, err)
			}
		case StateLoginForm:
			if err := a.submitLogin(ctx); err != nil {
				a.state = StateFailed
				return err
			}
		case StateSecondFactor:
			if err := a.submitSecondFactor(ctx, retries); err != nil {
				a.state = StateFailed
				return err
			}
		}
	}
}

// submitLogin fills and posts the credential form, then reports failure
// when the portal bounces back to the login page.
func (a *Authenticator) submitLogin(ctx context.Context) error {
	form, ok := FindForm(a.session.HTML(), a.session.CurrentURL(), a.site.LoginForm)
	if !ok {
		return ErrLoginFormMissing
	}

	username, password := a.cfg.Username, a.cfg.Password
	if a.cfg.Interactive {
		var err error
		if username, err = a.prompter.ReadLine("Username: "); err != nil {
			return err
		}
		if password, err = a.prompter.ReadSecret("Password: "); err != nil {
			return err
		}
	} else if !a.cfg.Silent {
		fmt.Println("Logging In...")
	}

	a.sleep(submitSettleWait)
	if err := a.session.SubmitForm(form, map[string]string{
		a.site.EmailField:    username,
		a.site.PasswordField: password,
	}); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if a.session.CurrentStatus() != 200 || sameURL(a.session.CurrentURL(), a.site.LoginURL()) {
		logger.Warn(ctx, "Login failed", "status", a.session.CurrentStatus())
		if !a.cfg.Interactive {
			if !a.cfg.Silent {
				fmt.Println("Login failed, retrying in 30 seconds...")
			}
			a.sleep(loginRetryWait)
		}
	}
	return nil
}

// submitSecondFactor posts a one-time code. A 422 on entry means the
// previous code was rejected: back off per the schedule, then try again
// with a fresh code.
func (a *Authenticator) submitSecondFactor(ctx context.Context, retries int) error {
	if a.session.CurrentStatus() == 422 {
		logger.Warn(ctx, "2FA code rejected", "retries", retries)
		if !a.cfg.Interactive {
			wait := backoffSchedule[min(retries, len(backoffSchedule)-1)]
			if !a.cfg.Silent {
				fmt.Println("Retrying in", wait, "...")
			}
			a.sleep(wait)
		}
	}

	form, ok := FindForm(a.session.HTML(), a.session.CurrentURL(), a.site.AuthForm)
	if !ok {
		return ErrSecondFactorFormMissing
	}

	var code string
	if a.cfg.Interactive {
		var err error
		if code, err = a.prompter.ReadLine("2FA Code: "); err != nil {
			return err
		}
	} else {
		if a.cfg.TOTPSecret == "" {
			return ErrMissingSecondFactorSecret
		}
		if !a.cfg.Silent {
			fmt.Println("Generating 2FA Code...")
		}
		a.sleep(submitSettleWait)
		var err error
		if code, err = totp.GenerateCode(a.cfg.TOTPSecret, a.now()); err != nil {
			return fmt.Errorf("generate 2fa code: %w", err)
		}
	}

	if err := a.session.SubmitForm(form, map[string]string{a.site.AuthCodeField: code}); err != nil {
		return fmt.Errorf("submit 2fa: %w", err)
	}
	return nil
}

// FetchTransactions navigates the authenticated session to the wallet
// summary and transaction history pages, optionally saving their HTML and
// persisting cookies for the next run.
func (a *Authenticator) FetchTransactions(ctx context.Context) (string, error) {
	if a.state != StateAuthenticated {
		return "", fmt.Errorf("%w: not authenticated", ErrTransactionsUnavailable)
	}

	if a.cfg.SaveHTML {
		if err := a.session.Navigate(a.site.WalletURL()); err != nil {
			logger.Warn(ctx, "Could not load wallet summary", "error", err)
		}
		if err := a.savePage(ctx, a.cfg.SummaryHTMLFile); err != nil {
			logger.Warn(ctx, "Could not save summary HTML", "error", err)
		}
	}

	if !a.cfg.Silent {
		fmt.Println("Loading Transactions...")
	}
	if err := a.session.Navigate(a.site.TransactionURL()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransactionsUnavailable, err)
	}
	if a.session.CurrentStatus() != 200 {
		return "", fmt.Errorf("%w: status %d", ErrTransactionsUnavailable, a.session.CurrentStatus())
	}
	// Authenticated wallet pages carry no forms; a form here means the
	// session expired and the portal bounced us to a login page.
	if HasForms(a.session.HTML()) {
		return "", fmt.Errorf("%w: session expired", ErrTransactionsUnavailable)
	}

	if a.cfg.SaveHTML {
		if err := a.savePage(ctx, a.cfg.TransactionHTMLFile); err != nil {
			logger.Warn(ctx, "Could not save transaction HTML", "error", err)
		}
	}

	if !a.cfg.Interactive || a.cfg.UseCookies {
		if err := a.session.SaveCookies(a.cfg.CookieFile); err != nil {
			logger.Warn(ctx, "Could not save cookies", "file", a.cfg.CookieFile, "error", err)
		}
	}

	return a.session.HTML(), nil
}

func (a *Authenticator) savePage(ctx context.Context, path string) error {
	if !a.cfg.Silent {
		fmt.Println("Saving HTML", path)
	}
	return os.WriteFile(path, []byte(a.session.HTML()), 0644)
}
