package portal

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Session is the narrow surface the authenticator drives. The portal
// signals navigation purely through redirects, so the machine re-derives
// where it is from CurrentURL and CurrentStatus after every call instead of
// trusting a return value.
type Session interface {
	Navigate(url string) error
	SubmitForm(form *Form, values map[string]string) error
	CurrentURL() string
	CurrentStatus() int
	HTML() string
	SaveCookies(path string) error
	LoadCookies(path string) error
}

// CollySession implements Session over a colly collector: one cookie jar,
// one active page, strictly sequential use.
type CollySession struct {
	collector *colly.Collector
	baseURL   string

	url    string
	status int
	html   string
}

// NewCollySession builds a session for the given portal. Error status
// responses are parsed like any other so the authenticator can observe 422
// second-factor rejections.
func NewCollySession(userAgent, baseURL string) *CollySession {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(userAgent),
	)

	s := &CollySession{collector: c, baseURL: baseURL}

	record := func(r *colly.Response) {
		if r == nil || r.Request == nil {
			return
		}
		s.url = r.Request.URL.String()
		s.status = r.StatusCode
		s.html = string(r.Body)
	}
	c.OnResponse(record)
	c.OnError(func(r *colly.Response, err error) {
		record(r)
	})

	return s
}

// Navigate loads a page, following redirects.
func (s *CollySession) Navigate(url string) error {
	return s.collector.Visit(url)
}

// SubmitForm posts the form's fields (hidden values preserved, supplied
// values overriding) to its action URL.
func (s *CollySession) SubmitForm(form *Form, values map[string]string) error {
	return s.collector.Post(form.Action, form.Submission(values))
}

// CurrentURL returns the final URL of the last response, or "" before any
// navigation.
func (s *CollySession) CurrentURL() string { return s.url }

// CurrentStatus returns the last HTTP status, or 0 before any navigation.
func (s *CollySession) CurrentStatus() int { return s.status }

// HTML returns the body of the last response.
func (s *CollySession) HTML() string { return s.html }

// SaveCookies persists the portal's cookie jar to path.
func (s *CollySession) SaveCookies(path string) error {
	cookies := s.collector.Cookies(s.baseURL)
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCookies restores a previously saved cookie jar. A missing file is
// reported as-is; callers treat it as a normal first-run condition.
func (s *CollySession) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return err
	}
	return s.collector.SetCookies(s.baseURL, cookies)
}

// sameURL compares portal URLs ignoring a trailing slash, since redirects
// are inconsistent about it.
func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
