// Package cohorts talks to the cohort lookup service.
package cohorts

import (
	"context"
	"net/http"
	"strings"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
)

const serviceName = "cohorts"

type Client struct {
	HTTP    services.Doer
	BaseURL string
}

func New(doer services.Doer, baseURL string) *Client {
	return &Client{HTTP: doer, BaseURL: baseURL}
}

// AllCohorts lists every media-plan cohort with its ABVR codes.
func (c *Client) AllCohorts(ctx context.Context) ([]catalog.CohortInfo, error) {
	res, err := services.Call(ctx, c.HTTP, serviceName, "get-all-mediaplan-cohorts", &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    services.Join(c.BaseURL, "get-all-mediaplan-cohorts"),
	})
	if err != nil {
		return nil, err
	}
	if err := services.ExpectJSON(serviceName, "get-all-mediaplan-cohorts", res); err != nil {
		return nil, err
	}

	var out []catalog.CohortInfo
	for _, v := range gjson.Parse(res.BodyString).Array() {
		name := strings.TrimSpace(v.Get("name").String())
		if name == "" {
			continue
		}
		out = append(out, catalog.CohortInfo{Name: name, ABVRs: parseCodes(v.Get("abvrs"))})
	}
	return out, nil
}

// parseCodes accepts "a, b,c" as well as ["a","b"].
func parseCodes(v gjson.Result) []string {
	if v.IsArray() {
		var out []string
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return utils.SplitCSV(v.String())
}
