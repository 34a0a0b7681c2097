// Package audience talks to the audience segment lookup service.
package audience

import (
	"context"
	"net/http"
	"strings"

	"github.com/briefdesk/briefedit/pkg/brief"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
)

const serviceName = "audience"

type Client struct {
	HTTP    services.Doer
	BaseURL string
}

func New(doer services.Doer, baseURL string) *Client {
	return &Client{HTTP: doer, BaseURL: baseURL}
}

// Info fetches name and description for each code. The service takes the
// codes as a comma-joined plain body.
func (c *Client) Info(ctx context.Context, codes []string) ([]brief.Audience, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	res, err := services.Call(ctx, c.HTTP, serviceName, "getAudienceInfo", &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     services.Join(c.BaseURL, "getAudienceInfo"),
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte(strings.Join(codes, ",")),
	})
	if err != nil {
		return nil, err
	}
	if err := services.ExpectJSON(serviceName, "getAudienceInfo", res); err != nil {
		return nil, err
	}
	return brief.ParseAudiences(gjson.Parse(res.BodyString), true), nil
}
