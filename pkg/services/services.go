// Package services holds what the external collaborator clients share:
// their endpoints, the upstream error type and detail extraction.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/briefdesk/briefedit/pkg/whttp"
	"github.com/tidwall/gjson"
)

// Endpoints are the base URLs of the external collaborators.
type Endpoints struct {
	Backend      string
	Cohorts      string
	Locations    string
	Audience     string
	Presentation string
}

// Join appends path to a base URL, tolerating a trailing slash on the base.
func Join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Doer is implemented by *whttp.Client.
type Doer interface {
	SendHTTPRequest(ctx context.Context, req *whttp.WHTTPReq) (*whttp.WHTTPRes, error)
}

var ErrUpstream = errors.New("upstream request failed")

// HTTPError describes a failed call to an external collaborator.
type HTTPError struct {
	Service    string
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Service, e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Detail)
}

func (e *HTTPError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUpstream
}

// Message is the text shown to the operator.
func (e *HTTPError) Message() string {
	return e.Detail
}

// Detail picks the most useful message out of an error response: a JSON
// detail, error or message field, then the HTML page title, then fallback.
func Detail(res *whttp.WHTTPRes, fallback string) string {
	if res == nil {
		return fallback
	}
	if gjson.Valid(res.BodyString) {
		for _, key := range []string{"detail", "error", "message"} {
			v := gjson.Get(res.BodyString, key)
			if !v.Exists() {
				continue
			}
			switch {
			case v.Type == gjson.String && v.Str != "":
				return v.Str
			case v.IsArray():
				// FastAPI style validation errors
				var msgs []string
				v.ForEach(func(_, item gjson.Result) bool {
					if m := item.Get("msg").String(); m != "" {
						msgs = append(msgs, m)
					}
					return true
				})
				if len(msgs) > 0 {
					return strings.Join(msgs, "; ")
				}
			case v.IsObject():
				if m := v.Get("message").String(); m != "" {
					return m
				}
			}
		}
	}
	if res.HTTPTitle != "" {
		return res.HTTPTitle
	}
	return fallback
}

// Call sends req and turns transport failures and non-2xx statuses into *HTTPError.
func Call(ctx context.Context, doer Doer, service, op string, req *whttp.WHTTPReq) (*whttp.WHTTPRes, error) {
	res, err := doer.SendHTTPRequest(ctx, req)
	if err != nil {
		return nil, &HTTPError{Service: service, Op: op, Detail: fmt.Sprintf("%s failed", op), Err: err}
	}
	if !res.OK() {
		return res, &HTTPError{
			Service:    service,
			Op:         op,
			StatusCode: res.StatusCode,
			Detail:     Detail(res, fmt.Sprintf("%s failed", op)),
		}
	}
	return res, nil
}

// ExpectJSON rejects a 2xx response whose body is not JSON.
func ExpectJSON(service, op string, res *whttp.WHTTPRes) error {
	if !gjson.Valid(res.BodyString) {
		return &HTTPError{Service: service, Op: op, StatusCode: res.StatusCode, Detail: fmt.Sprintf("%s returned an invalid response", op)}
	}
	return nil
}
