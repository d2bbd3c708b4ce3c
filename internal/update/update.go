// Package update checks the release listing for a newer build.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
	"pulsenet/internal/version"
)

const (
	// listPageSize bounds the release listing fetched when prereleases count.
	listPageSize = 20
	maxBody      = 2 << 20
)

// Result is the outcome of an update check.
type Result struct {
	CurrentVersion  string  `json:"currentVersion"`
	LatestVersion   string  `json:"latestVersion"`
	UpdateAvailable bool    `json:"updateAvailable"`
	IsPrerelease    bool    `json:"isPrerelease"`
	URL             string  `json:"url"`
	Error           *string `json:"error"`
}

// Options configures a Checker.
type Options struct {
	Client    *http.Client
	API       string // e.g. https://api.github.com
	Repo      string // owner/name
	Current   string
	UserAgent string
	// Interval and Burst throttle outgoing requests; zero Interval disables it.
	Interval time.Duration
	Burst    int
	Logger   *zap.Logger
}

// Checker queries a GitHub-style release API.
type Checker struct {
	client    *http.Client
	api       string
	repo      string
	current   string
	userAgent string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewChecker creates a Checker from opts.
func NewChecker(opts Options) *Checker {
	c := &Checker{
		client:    opts.Client,
		api:       strings.TrimRight(opts.API, "/"),
		repo:      opts.Repo,
		current:   opts.Current,
		userAgent: opts.UserAgent,
		logger:    logging.OrNop(opts.Logger),
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Interval > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(opts.Interval), burst)
	}
	return c
}

// ReleasesPage returns the default landing URL for the repository's releases.
func (c *Checker) ReleasesPage() string {
	return fmt.Sprintf("https://github.com/%s/releases/latest", c.repo)
}

func (c *Checker) endpoint(includePrerelease bool) string {
	if includePrerelease {
		return fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.api, c.repo, listPageSize)
	}
	return fmt.Sprintf("%s/repos/%s/releases/latest", c.api, c.repo)
}

// Check fetches the newest release and compares it with the running version.
// With includePrerelease the first non-draft entry of the listing is used,
// otherwise the single latest release. Failures are reported in Result.Error.
func (c *Checker) Check(ctx context.Context, includePrerelease bool) Result {
	res := Result{CurrentVersion: c.current, URL: c.ReleasesPage()}

	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Debug("update check throttled")
		return fail(res, errkind.UpdateCheckFailed)
	}

	body, err := c.fetch(ctx, c.endpoint(includePrerelease))
	if err != nil {
		c.logger.Warn("update check failed", zap.Error(err))
		return fail(res, errkind.UpdateCheckFailed)
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Warn("release response not JSON", zap.Error(err))
		return fail(res, errkind.InvalidResponse)
	}

	release := pickRelease(data, includePrerelease)

	tag, _ := release["tag_name"].(string)
	latest := strings.TrimLeft(tag, "v")
	res.LatestVersion = latest
	res.UpdateAvailable = latest != "" && version.IsNewer(Core(latest), c.current)
	res.IsPrerelease, _ = release["prerelease"].(bool)
	if u, ok := release["html_url"].(string); ok {
		res.URL = u
	}

	c.logger.Info("update check finished",
		zap.String("current", c.current),
		zap.String("latest", latest),
		zap.Bool("updateAvailable", res.UpdateAvailable))
	return res
}

func (c *Checker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// pickRelease selects the release object from a decoded response. A missing
// release yields nil.
func pickRelease(data any, includePrerelease bool) map[string]any {
	if !includePrerelease {
		obj, _ := data.(map[string]any)
		return obj
	}
	items, _ := data.([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if draft, _ := obj["draft"].(bool); !draft {
			return obj
		}
	}
	return nil
}

// Core returns v without any pre-release or build suffix, so "1.2.0-beta.1"
// compares as "1.2.0".
func Core(v string) string {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		return v[:i]
	}
	return v
}

func fail(res Result, k errkind.Kind) Result {
	msg := string(k)
	res.Error = &msg
	return res
}
