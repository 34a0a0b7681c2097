// Package presentation talks to the slide generation service.
package presentation

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const (
	serviceName = "presentation"
	op          = "generate-presentation-from-email"
)

// DefaultAllowedDomains are the registrable domains slide links may point to.
var DefaultAllowedDomains = []string{"google.com"}

type Client struct {
	HTTP           services.Doer
	BaseURL        string
	AllowedDomains []string
}

func New(doer services.Doer, baseURL string, allowed []string) *Client {
	if len(allowed) == 0 {
		allowed = DefaultAllowedDomains
	}
	return &Client{HTTP: doer, BaseURL: baseURL, AllowedDomains: allowed}
}

// Generate requests a slide deck. It succeeds only on a 2xx response whose
// status is "success".
func (c *Client) Generate(ctx context.Context, req *brief.PresentationRequest) (*brief.Presentation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	res, err := services.Call(ctx, c.HTTP, serviceName, op, whttp.JSONRequest(services.Join(c.BaseURL, op), body))
	if err != nil {
		return nil, err
	}

	root := gjson.Parse(res.BodyString)
	p := &brief.Presentation{
		Status:  root.Get("status").String(),
		Message: root.Get("message").String(),
		URL:     root.Get("google_slides_url").String(),
	}
	if p.Status != "success" {
		return nil, &services.HTTPError{
			Service:    serviceName,
			Op:         op,
			StatusCode: res.StatusCode,
			Detail:     services.Detail(res, "An error occurred while creating the presentation."),
		}
	}
	p.Trusted = c.Trusted(p.URL)
	return p, nil
}

// Trusted reports whether a slides link is https and belongs to an allowed
// registrable domain.
func (c *Client) Trusted(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return false
	}
	domain, err := publicsuffix.Domain(strings.ToLower(u.Hostname()))
	if err != nil {
		return false
	}
	for _, allowed := range c.AllowedDomains {
		if strings.EqualFold(domain, allowed) {
			return true
		}
	}
	return false
}
