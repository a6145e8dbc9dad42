package buildstamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultRemoteTimeout bounds a build-number fetch when no timeout is configured.
const DefaultRemoteTimeout = 10 * time.Second

const userAgent = "buildstamp"

// RemoteFetchError reports a failed build-number fetch. StatusCode and
// ContentType are zero when no response was received.
type RemoteFetchError struct {
	URL         string
	StatusCode  int
	ContentType string
	Err         error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetching build number from %s: %v", e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// RemoteSource fetches the build component of a version from an HTTP endpoint.
// The endpoint answers a GET with status 200 and either application/json
// ({"build": N}) or text/plain (the bare number).
type RemoteSource struct {
	URL     string
	Timeout time.Duration

	client *resty.Client
}

// NewRemoteSource returns a source for url. A non-positive timeout selects
// DefaultRemoteTimeout.
func NewRemoteSource(url string, timeout time.Duration) *RemoteSource {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteSource{
		URL:     url,
		Timeout: timeout,
		client:  resty.New().SetHeader("User-Agent", userAgent),
	}
}

// FetchBuild issues a single GET and returns the build number. Every failure,
// including the deadline expiring, is a *RemoteFetchError.
func (s *RemoteSource) FetchBuild(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	res, err := s.client.R().SetContext(ctx).Get(s.URL)
	if err != nil {
		return 0, &RemoteFetchError{URL: s.URL, Err: err}
	}

	fail := func(err error) (uint64, error) {
		return 0, &RemoteFetchError{
			URL:         s.URL,
			StatusCode:  res.StatusCode(),
			ContentType: res.Header().Get("Content-Type"),
			Err:         err,
		}
	}

	if res.StatusCode() != http.StatusOK {
		return fail(fmt.Errorf("request failed with status code %d", res.StatusCode()))
	}

	contentType := strings.ToLower(res.Header().Get("Content-Type"))
	var build uint64
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		build, err = parseJSONBuild(res.Body())
	case strings.HasPrefix(contentType, "text/plain"):
		build, err = parseTextBuild(res.Body())
	default:
		err = fmt.Errorf("invalid content-type: expected application/json or text/plain but received %q", contentType)
	}
	if err != nil {
		return fail(err)
	}
	return build, nil
}

var errMissingBuild = errors.New("response has no build field")

// parseJSONBuild reads the build field of a JSON object. Numbers and numeric
// strings are both accepted.
func parseJSONBuild(body []byte) (uint64, error) {
	var payload struct {
		Build json.RawMessage `json:"build"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decoding json body: %w", err)
	}
	if len(payload.Build) == 0 || string(payload.Build) == "null" {
		return 0, errMissingBuild
	}
	var n json.Number
	if err := json.Unmarshal(payload.Build, &n); err != nil {
		return 0, fmt.Errorf("build field: %w", err)
	}
	return parseBuildNumber(n.String())
}

func parseTextBuild(body []byte) (uint64, error) {
	return parseBuildNumber(strings.TrimSpace(string(body)))
}

func parseBuildNumber(s string) (uint64, error) {
	n, err := parseComponent(s)
	if err != nil {
		return 0, fmt.Errorf("build number: %w", err)
	}
	return n, nil
}
