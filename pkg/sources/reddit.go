package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/wallwatch/wallwatch/internal/domain"
	"github.com/wallwatch/wallwatch/pkg/httpclient"
	"github.com/wallwatch/wallwatch/pkg/wallconfig"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"

	defaultListingLimit = 100
	tokenExpirySlack    = time.Minute
)

// Options configures the reddit fetcher.
type Options struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Timeout      time.Duration

	// BaseURL and AuthURL are overridable for tests.
	BaseURL string
	AuthURL string

	// ListingLimit caps posts per listing call (reddit maximum is 100).
	ListingLimit int
}

// RedditFetcher fetches subreddit and multireddit listings over the OAuth
// API using application-only (client credentials) auth.
type RedditFetcher struct {
	client       *resty.Client
	limiter      *rate.Limiter
	opts         Options
	listingLimit int

	tokenMu     sync.Mutex
	accessToken string
	tokenType   string
	tokenExpiry time.Time
}

// NewRedditFetcher builds a fetcher for the given application credentials.
func NewRedditFetcher(opts Options) (*RedditFetcher, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("reddit client id and secret are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = defaultAuthURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limit := opts.ListingLimit
	if limit <= 0 || limit > 100 {
		limit = defaultListingLimit
	}

	client := httpclient.NewRestyHTTPClient(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	// Application-only clients get roughly 60 requests per minute.
	return &RedditFetcher{
		client:       client,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		opts:         opts,
		listingLimit: limit,
	}, nil
}

// Fetch returns the newest posts of the source that carry preview images.
// Each preview image becomes one candidate post.
func (f *RedditFetcher) Fetch(ctx context.Context, src wallconfig.Source) ([]domain.Post, error) {
	path, err := listingPath(src)
	if err != nil {
		return nil, err
	}

	token, tokenType, err := f.ensureToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", fmt.Sprintf("%s %s", tokenType, token)).
		SetQueryParams(map[string]string{
			"raw_json": "1",
			"limit":    strconv.Itoa(f.listingLimit),
		}).
		Get(f.opts.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("fetch listing for %q: %w", src.Name, err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		f.invalidateToken()
		return nil, fmt.Errorf("listing for %q rejected with status %d", src.Name, resp.StatusCode())
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing for %q returned status %d", src.Name, resp.StatusCode())
	}

	var listing listingResponse
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("decode listing for %q: %w", src.Name, err)
	}

	return postsFromListing(src.Name, listing), nil
}

// listingPath maps the source kind to its OAuth API listing endpoint.
func listingPath(src wallconfig.Source) (string, error) {
	switch src.Kind {
	case wallconfig.SourceKindSubreddit:
		return fmt.Sprintf("/r/%s/new", url.PathEscape(src.Name)), nil
	case wallconfig.SourceKindMulti:
		return fmt.Sprintf("/user/%s/m/%s/new", url.PathEscape(src.User), url.PathEscape(src.Feed)), nil
	default:
		return "", fmt.Errorf("source %q has unsupported kind %q", src.Name, src.Kind)
	}
}

// ensureToken returns a valid bearer token, requesting a fresh one via the
// client-credentials grant when the cached token is missing or near expiry.
func (f *RedditFetcher) ensureToken(ctx context.Context) (token, tokenType string, err error) {
	f.tokenMu.Lock()
	defer f.tokenMu.Unlock()

	if f.accessToken != "" && time.Now().Add(tokenExpirySlack).Before(f.tokenExpiry) {
		return f.accessToken, f.tokenType, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBasicAuth(f.opts.ClientID, f.opts.ClientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(f.opts.AuthURL)
	if err != nil {
		return "", "", fmt.Errorf("token request: %w", err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("token request returned status %d", resp.StatusCode())
	}

	var payload struct {
		AccessToken string  `json:"access_token"`
		TokenType   string  `json:"token_type"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", "", fmt.Errorf("token response contained no access_token")
	}

	f.accessToken = payload.AccessToken
	f.tokenType = payload.TokenType
	if f.tokenType == "" {
		f.tokenType = "bearer"
	}
	f.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)

	return f.accessToken, f.tokenType, nil
}

func (f *RedditFetcher) invalidateToken() {
	f.tokenMu.Lock()
	f.accessToken = ""
	f.tokenMu.Unlock()
}

// postsFromListing flattens listing children into candidate posts, one per
// preview source image. Posts without previews are skipped: there is nothing
// to measure, let alone download.
func postsFromListing(sourceName string, listing listingResponse) []domain.Post {
	var posts []domain.Post
	for _, child := range listing.Data.Children {
		data := child.Data
		if data.ID == "" {
			continue
		}
		for i, image := range data.Preview.Images {
			src := image.Source
			if src.URL == "" {
				continue
			}
			id := data.ID
			if i > 0 {
				id = data.ID + "_" + strconv.Itoa(i)
			}
			posts = append(posts, domain.Post{
				ID:     id,
				URL:    src.URL,
				Width:  src.Width,
				Height: src.Height,
				NSFW:   data.Over18,
				Source: sourceName,
			})
		}
	}
	return posts
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				ID      string `json:"id"`
				Title   string `json:"title"`
				Over18  bool   `json:"over_18"`
				Preview struct {
					Images []struct {
						Source struct {
							URL    string `json:"url"`
							Width  int    `json:"width"`
							Height int    `json:"height"`
						} `json:"source"`
					} `json:"images"`
				} `json:"preview"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
