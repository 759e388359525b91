package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/framewise/internal/model"
)

// enrichment is the prompt material and the citations derived from it
type enrichment struct {
	promptInputs
	Citations []model.Citation
}

// enrich gathers regional context, reference snippets and the reference
// page concurrently. A failing source is logged and left out; only
// cancellation of ctx is returned as an error.
func (p *Pipeline) enrich(ctx context.Context, req model.ContentRequest) (enrichment, error) {
	var (
		out enrichment
		log = p.logger.With(zap.String("topic", req.Topic))
	)

	g, gctx := errgroup.WithContext(ctx)

	if p.regions != nil {
		g.Go(func() error {
			rc, err := p.regions.ContextFor(gctx, req.Region, req.Topic)
			if err != nil {
				log.Warn("regional context unavailable", zap.String("region", req.Region), zap.Error(err))
				return nil
			}
			out.Regional = rc
			return nil
		})
	}

	if req.UseReferences && p.references != nil {
		g.Go(func() error {
			docs, err := p.references.Search(gctx, req.Topic, req.UseSemantic)
			if err != nil {
				log.Warn("reference search failed", zap.Bool("semantic", req.UseSemantic), zap.Error(err))
				return nil
			}
			out.Documents = docs
			return nil
		})
	}

	if req.ReferenceURL != "" && p.fetcher != nil {
		g.Go(func() error {
			page, err := p.fetcher.FetchWithRetry(gctx, req.ReferenceURL)
			if err != nil {
				log.Warn("reference URL fetch failed", zap.String("url", req.ReferenceURL), zap.Error(err))
				return nil
			}
			out.Fetched = page
			return nil
		})
	}

	// Goroutines write disjoint fields and never return an error
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return enrichment{}, err
	}

	if len(out.Documents) > 0 {
		out.Citations = append(out.Citations, p.references.CitationsFor(out.Documents)...)
	}
	if out.Fetched != nil {
		out.Citations = append(out.Citations, pageCitation(out.Fetched, p.now()))
	}

	return out, nil
}

// pageCitation cites a fetched reference page
func pageCitation(page *FetchResult, accessed time.Time) model.Citation {
	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = page.Subject
	}
	author := strings.TrimSpace(page.Author)
	if author == "" {
		author = model.UnknownAuthor
	}

	source := page.FinalURL
	if u, err := url.Parse(page.FinalURL); err == nil && u.Host != "" {
		source = strings.TrimPrefix(u.Hostname(), "www.")
	}

	link := page.FinalURL
	return model.Citation{
		Title:      title,
		Author:     author,
		Source:     source,
		URL:        &link,
		AccessDate: accessed,
	}
}
