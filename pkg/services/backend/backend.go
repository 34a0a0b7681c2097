// Package backend talks to the email parsing and forecast backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"strings"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
)

const serviceName = "backend"

type Client struct {
	HTTP      services.Doer
	BaseURL   string
	StripHTML bool
}

func New(doer services.Doer, baseURL string, stripHTML bool) *Client {
	return &Client{HTTP: doer, BaseURL: baseURL, StripHTML: stripHTML}
}

func (c *Client) postJSON(ctx context.Context, op string, payload interface{}) (*whttp.WHTTPRes, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	res, err := services.Call(ctx, c.HTTP, serviceName, op, whttp.JSONRequest(services.Join(c.BaseURL, op), body))
	if err != nil {
		return nil, err
	}
	if err := services.ExpectJSON(serviceName, op, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessEmail submits the email for parsing and hydrates the resulting brief.
func (c *Client) ProcessEmail(ctx context.Context, email brief.Email) (*brief.Brief, error) {
	text := email.Body
	if c.StripHTML && LooksLikeHTML(text) {
		if stripped, err := StripHTML(text); err == nil {
			text = stripped
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("subject", email.Subject); err != nil {
		return nil, err
	}
	if err := w.WriteField("body", text); err != nil {
		return nil, err
	}
	for _, f := range email.Files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	res, err := services.Call(ctx, c.HTTP, serviceName, "process-email",
		whttp.MultipartRequest(services.Join(c.BaseURL, "process-email"), w.FormDataContentType(), &buf))
	if err != nil {
		return nil, err
	}
	b, err := brief.Parse([]byte(res.BodyString))
	if err != nil {
		return nil, &services.HTTPError{Service: serviceName, Op: "process-email", StatusCode: res.StatusCode, Detail: "process-email returned an invalid brief", Err: err}
	}
	return b, nil
}

type cohortRequest struct {
	Keywords []string `json:"keywords"`
	Cohorts  []string `json:"cohorts"`
}

// AddCohort asks the backend for the audiences of cohorts whose codes are
// not in the catalog.
func (c *Client) AddCohort(ctx context.Context, cohorts, keywords []string) ([]brief.Audience, error) {
	res, err := c.postJSON(ctx, "add-cohort", cohortRequest{Keywords: nonNil(keywords), Cohorts: nonNil(cohorts)})
	if err != nil {
		return nil, err
	}
	return brief.ParseAudiences(gjson.Parse(res.BodyString), true), nil
}

// ABVRsFromKeywords re-runs audience matching for the given keywords.
func (c *Client) ABVRsFromKeywords(ctx context.Context, keywords, cohorts []string) (brief.KeywordAudiences, error) {
	res, err := c.postJSON(ctx, "get-abvrs-from-keywords", cohortRequest{Keywords: nonNil(keywords), Cohorts: nonNil(cohorts)})
	if err != nil {
		return brief.KeywordAudiences{}, err
	}
	root := gjson.Parse(res.BodyString)
	out := brief.KeywordAudiences{
		ABVRs:     brief.ParseAudiences(root.Get("abvrs"), true),
		LeftABVRs: brief.ParseAudiences(root.Get("left_abvrs"), false),
	}
	for _, kw := range root.Get("keywords").Array() {
		out.Keywords = append(out.Keywords, kw.String())
	}
	return out, nil
}

// AudiencesByCodes fetches the details of the given codes.
func (c *Client) AudiencesByCodes(ctx context.Context, codes []string) ([]brief.Audience, error) {
	res, err := c.postJSON(ctx, "get-audience-segment-by-abvrs", map[string]string{"abvrs": strings.Join(codes, ",")})
	if err != nil {
		return nil, err
	}
	return brief.ParseAudiences(gjson.Parse(res.BodyString), true), nil
}

// AudiencesByName searches audiences by name.
func (c *Client) AudiencesByName(ctx context.Context, name string, keywords []string) ([]brief.Audience, error) {
	res, err := c.postJSON(ctx, "get-audience-segment-by-name", struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	}{name, nonNil(keywords)})
	if err != nil {
		return nil, err
	}
	return brief.ParseAudiences(gjson.Parse(res.BodyString), false), nil
}

// Forecast requests reach and impressions and returns the parsed result and
// the raw body.
func (c *Client) Forecast(ctx context.Context, req *brief.ForecastRequest) (*brief.Forecast, string, error) {
	res, err := c.postJSON(ctx, "get-forecast", req)
	if err != nil {
		return nil, "", err
	}
	f, err := brief.ParseForecast(res.BodyString)
	if err != nil {
		return nil, "", &services.HTTPError{Service: serviceName, Op: "get-forecast", StatusCode: res.StatusCode, Detail: "get-forecast returned an invalid result", Err: err}
	}
	return f, res.BodyString, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
