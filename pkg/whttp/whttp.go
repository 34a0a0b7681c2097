package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const USER_AGENT = "briefedit/1.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
	ContentType    string
}

// OK reports whether the response carries a 2xx status.
func (r *WHTTPRes) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Options configures the shared outbound client.
type Options struct {
	Retries   int           // 0 = nothing retried
	Timeout   time.Duration // 0 = no client timeout
	RateLimit float64       // requests per second, 0 = unlimited
	Proxy     string
	Logger    *logrus.Logger // nil = discard retry logs
}

// Client sends requests to the external collaborators.
type Client struct {
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a retryablehttp backed client. Non-2xx responses are
// returned to the caller untouched so their bodies can be inspected.
func NewClient(opts Options) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = opts.Timeout
	if opts.Logger != nil {
		retryClient.Logger = leveledLogrus{opts.Logger}
	} else {
		retryClient.Logger = nil
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	c := &Client{http: retryClient}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// SendHTTPRequest performs wReq and returns the decoded response.
// A non-2xx status is not an error at this layer.
func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body interface{}
	if wReq.Body != nil {
		body = wReq.Body
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode:  resp.StatusCode,
		BodyString:  string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
	}

	if looksLikeHTML(wRes) {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

// JSONRequest is a POST with a JSON body.
func JSONRequest(rawURL string, body []byte) *WHTTPReq {
	return &WHTTPReq{
		URL:     rawURL,
		Method:  http.MethodPost,
		Headers: []WHTTPHeader{{Name: "Content-Type", Value: "application/json"}},
		Body:    body,
	}
}

// MultipartRequest is a POST carrying a prebuilt multipart body.
func MultipartRequest(rawURL, contentType string, body *bytes.Buffer) *WHTTPReq {
	return &WHTTPReq{
		URL:     rawURL,
		Method:  http.MethodPost,
		Headers: []WHTTPHeader{{Name: "Content-Type", Value: contentType}},
		Body:    body.Bytes(),
	}
}

func looksLikeHTML(r *WHTTPRes) bool {
	if strings.Contains(r.ContentType, "html") {
		return true
	}
	trimmed := strings.TrimSpace(r.BodyString)
	return strings.HasPrefix(trimmed, "<")
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}

// leveledLogrus adapts logrus to retryablehttp.LeveledLogger.
type leveledLogrus struct {
	l *logrus.Logger
}

func (a leveledLogrus) fields(keysAndValues []interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return a.l.WithFields(f)
}

func (a leveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	a.fields(keysAndValues).Error(msg)
}

func (a leveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	a.fields(keysAndValues).Debug(msg)
}

func (a leveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	a.fields(keysAndValues).Debug(msg)
}

func (a leveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	a.fields(keysAndValues).Warn(msg)
}
