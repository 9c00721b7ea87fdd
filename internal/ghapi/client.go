package ghapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v62/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/graphql"
	"golang.org/x/oauth2"
)

const perPage = 100

// Options configures a Client.
type Options struct {
	Token      string
	APIURL     string
	GraphQLURL string

	// HTTPClient is the base client requests are sent with. Defaults to http.DefaultClient.
	HTTPClient   *http.Client
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client talks to the GitHub REST and GraphQL APIs.
type Client struct {
	rest *github.Client
	gql  *graphql.Client
}

// New creates a Client authenticated with opts.Token.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("a GitHub token is required")
	}
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	baseURL, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrapf(err, "invalid API url %q", apiURL)
	}
	gqlURL := opts.GraphQLURL
	if gqlURL == "" {
		gqlURL = strings.TrimSuffix(apiURL, "/") + "/graphql"
	}

	httpClient := newHTTPClient(ctx, opts)

	rest := github.NewClient(httpClient)
	rest.BaseURL = baseURL

	return &Client{
		rest: rest,
		gql:  graphql.NewClient(gqlURL, httpClient),
	}, nil
}

func newHTTPClient(ctx context.Context, opts Options) *http.Client {
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	return newRetryableClient(tc, opts)
}

func newRetryableClient(httpClient *http.Client, opts Options) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 5
	if opts.RetryMax > 0 {
		retryClient.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = &zeroLogAdapter{}
	retryClient.HTTPClient = httpClient

	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// the default policy does not retry 403, which GitHub uses for rate limits
		if rateLimited(resp) {
			return true, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if rateLimited(resp) {
			if ra := resp.Header.Get("retry-after"); ra != "" {
				sec, err := strconv.ParseInt(ra, 10, 64)
				if err != nil {
					return max
				}
				return time.Second * time.Duration(sec)
			}
			unix, err := strconv.ParseInt(resp.Header.Get("x-ratelimit-reset"), 10, 64)
			if err != nil {
				return max
			}
			if wait := time.Unix(unix, 0).Sub(time.Now().UTC()); wait > 0 {
				return wait
			}
			return min
		}
		return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	}

	return retryClient.StandardClient()
}

func rateLimited(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return resp.Header.Get("retry-after") != "" || resp.Header.Get("x-ratelimit-remaining") == "0"
}

// zeroLogAdapter routes retryablehttp messages to the debug log.
type zeroLogAdapter struct{}

func (l *zeroLogAdapter) Msg(msg string, keysAndValues ...interface{}) {
	e := log.Debug()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keysAndValues[i+1])
	}
	e.Msg(msg)
}

func (l *zeroLogAdapter) Error(msg string, keysAndValues ...interface{}) {
	l.Msg(msg, keysAndValues...)
}

func (l *zeroLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.Msg(msg, keysAndValues...)
}

func (l *zeroLogAdapter) Debug(msg string, keysAndValues ...interface{}) {
	l.Msg(msg, keysAndValues...)
}

func (l *zeroLogAdapter) Warn(msg string, keysAndValues ...interface{}) {
	l.Msg(msg, keysAndValues...)
}
