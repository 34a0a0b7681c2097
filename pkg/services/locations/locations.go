// Package locations talks to the location lookup service: locations,
// location groups, single lookups and persisting new entries.
package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/briefdesk/briefedit/pkg/catalog"
	"github.com/briefdesk/briefedit/pkg/services"
	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
)

const serviceName = "locations"

type Client struct {
	HTTP    services.Doer
	BaseURL string
}

func New(doer services.Doer, baseURL string) *Client {
	return &Client{HTTP: doer, BaseURL: baseURL}
}

func (c *Client) get(ctx context.Context, op, path string) (gjson.Result, error) {
	res, err := services.Call(ctx, c.HTTP, serviceName, op, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    services.Join(c.BaseURL, path),
	})
	if err != nil {
		return gjson.Result{}, err
	}
	if err := services.ExpectJSON(serviceName, op, res); err != nil {
		return gjson.Result{}, err
	}
	return gjson.Parse(res.BodyString), nil
}

// ref converts a service location {name, countryCode, type, locationId}.
func ref(v gjson.Result) catalog.LocationRef {
	return catalog.LocationRef{
		Name: catalog.FormatLocationName(v.Get("name").String(), v.Get("countryCode").String(), v.Get("type").String()),
		ID:   v.Get("locationId").Int(),
	}
}

func refs(list gjson.Result) []catalog.LocationRef {
	out := []catalog.LocationRef{}
	for _, v := range list.Array() {
		out = append(out, ref(v))
	}
	return out
}

// AllLocations lists every known location.
func (c *Client) AllLocations(ctx context.Context) ([]catalog.LocationRef, error) {
	root, err := c.get(ctx, "locations", "locations")
	if err != nil {
		return nil, err
	}
	return refs(root), nil
}

// AllGroups lists the location groups keyed by name.
func (c *Client) AllGroups(ctx context.Context) (map[string]catalog.LocationGroup, error) {
	root, err := c.get(ctx, "location-groups", "location-groups")
	if err != nil {
		return nil, err
	}
	out := map[string]catalog.LocationGroup{}
	root.ForEach(func(name, v gjson.Result) bool {
		g := catalog.LocationGroup{Name: name.String(), ExcludedLocations: []catalog.LocationRef{}}
		if l := v.Get("locations"); l.Exists() {
			g.IncludedLocations = refs(l)
		} else {
			g.IncludedLocations = refs(v.Get("includedLocations"))
			g.ExcludedLocations = refs(v.Get("excludedLocations"))
		}
		out[g.Name] = g
		return true
	})
	return out, nil
}

// Lookup searches the service for locations matching term.
func (c *Client) Lookup(ctx context.Context, term string) ([]catalog.LocationRef, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	root, err := c.get(ctx, "location lookup", "location/"+url.PathEscape(term))
	if err != nil {
		return nil, err
	}
	if root.IsObject() {
		return []catalog.LocationRef{ref(root)}, nil
	}
	return refs(root), nil
}

// SaveLocation persists a single location by its service ID.
func (c *Client) SaveLocation(ctx context.Context, loc catalog.LocationRef) error {
	if loc.ID == 0 || loc.Name == "" {
		return fmt.Errorf("location is missing its id or name")
	}
	req := whttp.JSONRequest(services.Join(c.BaseURL, fmt.Sprintf("locations/%d", loc.ID)), nil)
	_, err := services.Call(ctx, c.HTTP, serviceName, "save location", req)
	return err
}

type groupRequest struct {
	Name                string  `json:"name"`
	IncludedLocationIDs []int64 `json:"includedLocationIds"`
	ExcludedLocationIDs []int64 `json:"excludedLocationIds"`
}

// SaveGroup persists a location group and returns the groups the service echoes back.
func (c *Client) SaveGroup(ctx context.Context, name string, included, excluded []catalog.LocationRef) ([]catalog.LocationGroup, error) {
	body, err := json.Marshal(groupRequest{
		Name:                name,
		IncludedLocationIDs: ids(included),
		ExcludedLocationIDs: ids(excluded),
	})
	if err != nil {
		return nil, err
	}
	res, err := services.Call(ctx, c.HTTP, serviceName, "save location group", whttp.JSONRequest(services.Join(c.BaseURL, "location-groups"), body))
	if err != nil {
		return nil, err
	}
	if err := services.ExpectJSON(serviceName, "save location group", res); err != nil {
		return nil, err
	}

	var out []catalog.LocationGroup
	gjson.Parse(res.BodyString).ForEach(func(key, v gjson.Result) bool {
		out = append(out, catalog.LocationGroup{
			Name:              key.String(),
			IncludedLocations: refs(v.Get("includedLocations")),
			ExcludedLocations: refs(v.Get("excludedLocations")),
		})
		return true
	})
	return out, nil
}

func ids(list []catalog.LocationRef) []int64 {
	out := make([]int64, 0, len(list))
	for _, l := range list {
		out = append(out, l.ID)
	}
	return out
}
