// Package portal logs into the school portal and fetches the notices page.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// ErrLoginFailed is returned when the portal still shows a login form after
// submitting credentials.
var ErrLoginFailed = errors.New("portal: login failed")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Options configures a portal client.
type Options struct {
	BaseURL     string
	LoginPath   string
	NoticesPath string
	Username    string
	Password    string
	Timeout     time.Duration
	UserAgent   string
}

// Client is a cookie-keeping HTTP session against one portal.
type Client struct {
	BaseURL *url.URL
	Http    *resty.Client
	opts    Options
}

// NewClient creates a portal client. Nothing is fetched until Login or
// FetchNotices is called.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("portal base URL is empty")
	}
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing portal base URL: %w", err)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NoticesPath == "" {
		opts.NoticesPath = "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(opts.Timeout)

	return &Client{BaseURL: baseURL, Http: client, opts: opts}, nil
}

// HasCredentials reports whether a username and password were configured.
func (c *Client) HasCredentials() bool {
	return c.opts.Username != "" && c.opts.Password != ""
}

// Fetch logs in when credentials are configured, then returns the notices
// page. Any error here means no document could be rendered.
func (c *Client) Fetch(ctx context.Context) (*goquery.Document, error) {
	if c.HasCredentials() {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}
	return c.FetchNotices(ctx)
}

// Login submits the portal's login form. Hidden inputs (CSRF tokens) are
// copied from the form as served.
func (c *Client) Login(ctx context.Context) error {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.opts.LoginPath)
	if err != nil {
		return fmt.Errorf("fetching login page: %w", err)
	}
	if res.StatusCode() >= 400 {
		return fmt.Errorf("fetching login page: HTTP %d", res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parsing login page: %w", err)
	}

	form := findLoginForm(doc)
	if form == nil {
		return fmt.Errorf("%w: no login form found", ErrLoginFailed)
	}

	data := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			data[name] = in.AttrOr("value", "")
		}
	})
	data[usernameField(form)] = c.opts.Username
	data[passwordField(form)] = c.opts.Password

	action := c.resolveAction(res.RawResponse.Request.URL, form.AttrOr("action", ""))

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(data).
		Post(action)
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	if res.StatusCode() >= 400 {
		return fmt.Errorf("%w: HTTP %d", ErrLoginFailed, res.StatusCode())
	}

	after, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	if after.Find("input[type=password]").Length() > 0 {
		return ErrLoginFailed
	}

	log.Printf("Logged into portal %s", c.BaseURL.Host)
	return nil
}

// FetchNotices returns the parsed notices page. The document URL is the
// final URL after redirects so relative links resolve correctly.
func (c *Client) FetchNotices(ctx context.Context) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.opts.NoticesPath)
	if err != nil {
		return nil, fmt.Errorf("fetching notices page: %w", err)
	}
	if res.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetching notices page: HTTP %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parsing notices page: %w", err)
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		doc.Url = res.RawResponse.Request.URL
	}
	return doc, nil
}

func (c *Client) resolveAction(page *url.URL, action string) string {
	if action == "" {
		if page != nil {
			return page.String()
		}
		return c.opts.LoginPath
	}
	ref, err := url.Parse(action)
	if err != nil || page == nil {
		return action
	}
	return page.ResolveReference(ref).String()
}

// findLoginForm returns the first form with a password field.
func findLoginForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form:has(input[type=password])").First()
	if form.Length() == 0 {
		return nil
	}
	return form
}

var usernameSelectors = []string{
	"input[type=email]",
	"input[name*=user]",
	"input[name*=login]",
	"input[name*=mail]",
	"input[type=text]",
}

func usernameField(form *goquery.Selection) string {
	for _, sel := range usernameSelectors {
		if name, ok := form.Find(sel).First().Attr("name"); ok && name != "" {
			return name
		}
	}
	return "username"
}

func passwordField(form *goquery.Selection) string {
	if name, ok := form.Find("input[type=password]").First().Attr("name"); ok && name != "" {
		return name
	}
	return "password"
}
