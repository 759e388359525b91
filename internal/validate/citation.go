package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/util"
)

const verifyMaxRetries = 3

// verifyBaseDelay is the first backoff between verification retries. It
// doubles on each further retry. Tests override this to avoid real sleeps.
var verifyBaseDelay = time.Second

// CitationOptions configures citation validation
type CitationOptions struct {
	// VerifyOnline issues a HEAD request per citation URL
	VerifyOnline bool

	Timeout       time.Duration
	MaxWorkers    int
	UserAgent     string
	RespectRobots bool

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// CitationValidator checks citations for completeness and well-formedness,
// and optionally that their URLs resolve
type CitationValidator struct {
	httpClient   *http.Client
	robots       *util.RobotsChecker
	verifyOnline bool
	maxWorkers   int
	userAgent    string
	now          func() time.Time
}

// NewCitationValidator creates a new citation validator
func NewCitationValidator(opts CitationOptions) *CitationValidator {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "framewise/0.1"
	}

	client := util.NewHTTPClient(opts.Timeout, opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	v := &CitationValidator{
		httpClient:   client,
		verifyOnline: opts.VerifyOnline,
		maxWorkers:   opts.MaxWorkers,
		userAgent:    opts.UserAgent,
		now:          time.Now,
	}
	if opts.VerifyOnline && opts.RespectRobots {
		v.robots = util.NewRobotsChecker(opts.UserAgent, opts.Timeout)
	}
	return v
}

// Validate splits citations into accepted ones (normalized, in input order)
// and rejected ones. Rejections are returned, never raised.
func (v *CitationValidator) Validate(ctx context.Context, citations []model.Citation) ([]model.Citation, []model.CitationError) {
	if len(citations) == 0 {
		return nil, nil
	}

	results := make([]*model.CitationError, len(citations))
	normalized := make([]model.Citation, len(citations))
	var wg sync.WaitGroup

	// Semaphore limiting concurrent HEAD requests
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, c := range citations {
		normalized[i] = v.normalize(c)
		if cerr := v.checkStatic(normalized[i]); cerr != nil {
			results[i] = cerr
			continue
		}
		if !v.verifyOnline || normalized[i].URL == nil {
			continue
		}

		wg.Add(1)
		go func(idx int, c model.Citation) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = unverifiable(c, "context cancelled")
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = v.verifyWithRetry(ctx, c)
		}(i, normalized[i])
	}

	wg.Wait()

	var valid []model.Citation
	var errs []model.CitationError
	for i, r := range results {
		if r != nil {
			errs = append(errs, *r)
			continue
		}
		valid = append(valid, normalized[i])
	}
	return valid, errs
}

// normalize trims fields and fills the defaults for author and access date
func (v *CitationValidator) normalize(c model.Citation) model.Citation {
	c.Title = strings.TrimSpace(c.Title)
	c.Source = strings.TrimSpace(c.Source)
	c.Author = strings.TrimSpace(c.Author)
	if c.Author == "" {
		c.Author = model.UnknownAuthor
	}
	if c.AccessDate.IsZero() {
		c.AccessDate = v.now()
	}
	if c.URL != nil {
		u := strings.TrimSpace(*c.URL)
		if u == "" {
			c.URL = nil
		} else {
			c.URL = &u
		}
	}
	return c
}

func (v *CitationValidator) checkStatic(c model.Citation) *model.CitationError {
	if c.Title == "" || c.Source == "" {
		cerr := &model.CitationError{
			Citation: c,
			Kind:     model.CitationIncomplete,
			Reason:   missingFields(c),
		}
		// A missing source can be recovered from the URL host
		if c.Title != "" && c.URL != nil && IsValidHTTPURL(*c.URL) {
			fixed := c
			fixed.Source = sourceFromURL(*c.URL)
			cerr.Suggestion = &fixed
		}
		return cerr
	}

	if c.URL != nil && !IsValidHTTPURL(*c.URL) {
		cerr := &model.CitationError{
			Citation: c,
			Kind:     model.CitationInvalid,
			Reason:   fmt.Sprintf("malformed URL %q", *c.URL),
		}
		fixed := c
		if withScheme := "https://" + *c.URL; IsValidHTTPURL(withScheme) && !strings.Contains(*c.URL, "://") {
			fixed.URL = &withScheme
		} else {
			fixed.URL = nil
		}
		cerr.Suggestion = &fixed
		return cerr
	}

	if now := v.now(); c.AccessDate.After(now.Add(24 * time.Hour)) {
		fixed := c
		fixed.AccessDate = now
		return &model.CitationError{
			Citation:   c,
			Kind:       model.CitationInvalid,
			Reason:     "access date is in the future",
			Suggestion: &fixed,
		}
	}

	return nil
}

type verifyResult struct {
	statusCode int
	err        error
}

// verify issues one HEAD request for the citation URL
func (v *CitationValidator) verify(ctx context.Context, rawURL string) verifyResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return verifyResult{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return verifyResult{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return verifyResult{statusCode: resp.StatusCode}
}

// verifyWithRetry retries transient failures with exponential backoff
func (v *CitationValidator) verifyWithRetry(ctx context.Context, c model.Citation) *model.CitationError {
	rawURL := *c.URL

	if v.robots != nil && !v.robots.IsAllowed(ctx, rawURL) {
		// Not ours to probe; keep the citation as given
		return nil
	}

	var result verifyResult
	for attempt := 0; attempt < verifyMaxRetries; attempt++ {
		result = v.verify(ctx, rawURL)
		if !isRetryableVerifyResult(result) || ctx.Err() != nil {
			break
		}
		if attempt < verifyMaxRetries-1 {
			select {
			case <-ctx.Done():
				return unverifiable(c, "context cancelled")
			case <-time.After(time.Duration(1<<uint(attempt)) * verifyBaseDelay):
			}
		}
	}

	switch {
	case result.err != nil:
		return unverifiable(c, result.err.Error())
	case result.statusCode == http.StatusNotFound, result.statusCode == http.StatusGone:
		return unverifiable(c, fmt.Sprintf("URL returned HTTP %d", result.statusCode))
	case result.statusCode >= 500:
		return unverifiable(c, fmt.Sprintf("URL returned HTTP %d", result.statusCode))
	}

	// 2xx/3xx, and 401/403/405 from paywalled or HEAD-averse servers, show
	// the resource exists
	return nil
}

// isRetryableVerifyResult returns true for results that indicate transient failures
func isRetryableVerifyResult(result verifyResult) bool {
	if result.statusCode >= 500 && result.statusCode < 600 {
		return true
	}
	if result.statusCode == http.StatusTooManyRequests {
		return true
	}
	if result.err != nil {
		s := strings.ToLower(result.err.Error())
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset")
	}
	return false
}

func unverifiable(c model.Citation, reason string) *model.CitationError {
	fixed := c
	fixed.URL = nil
	return &model.CitationError{
		Citation:   c,
		Kind:       model.CitationUnverifiable,
		Reason:     reason,
		Suggestion: &fixed,
	}
}

func missingFields(c model.Citation) string {
	var missing []string
	if c.Title == "" {
		missing = append(missing, "title")
	}
	if c.Source == "" {
		missing = append(missing, "source")
	}
	return "missing " + strings.Join(missing, " and ")
}

func sourceFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
