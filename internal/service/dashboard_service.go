package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/export"
	"github.com/noah-isme/taxdesk-api/pkg/realtime"
)

// DashboardCacheKey stores the admin dashboard aggregate.
const DashboardCacheKey = "dash:admin:summary"

type dashboardPostSource interface {
	List(ctx context.Context) ([]models.BlogPost, error)
	Count(ctx context.Context) (int, error)
}

type dashboardUserCounter interface {
	Count(ctx context.Context) (int, error)
}

type changeFeed interface {
	Subscribe() (<-chan realtime.Event, func())
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	ImageBaseURL string
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Posts   dashboardPostSource
	Users   dashboardUserCounter
	Feed    changeFeed
	Cache   *CacheService
	Metrics *MetricsService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// DashboardService composes the admin dashboard and follows the blog change feed.
type DashboardService struct {
	posts   dashboardPostSource
	users   dashboardUserCounter
	feed    changeFeed
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig

	// generation is bumped by Invalidate; a refresh that saw it move skips the cache write.
	generation atomic.Uint64
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	cfg.ImageBaseURL = strings.TrimRight(cfg.ImageBaseURL, "/")
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		posts:   params.Posts,
		users:   params.Users,
		feed:    params.Feed,
		cache:   params.Cache,
		metrics: params.Metrics,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Summary returns the dashboard aggregate and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	if summary, hit := s.tryCache(ctx); hit {
		return summary, true, nil
	}
	summary, err := s.Refresh(ctx)
	if err != nil {
		return nil, false, err
	}
	return summary, false, nil
}

// Refresh recomputes the aggregate, bypassing and then repopulating the cache.
func (s *DashboardService) Refresh(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	generation := s.generation.Load()
	summary, err := s.compose(ctx)
	if err != nil {
		return nil, err
	}
	if s.generation.Load() == generation {
		s.persistCache(ctx, summary)
	}
	return summary, nil
}

// Subscribe registers a live refresh listener on the blog change feed.
// The returned function must be called when the listener goes away.
func (s *DashboardService) Subscribe() (<-chan realtime.Event, func(), error) {
	if s.feed == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "live refresh is not available")
	}
	events, unsubscribe := s.feed.Subscribe()
	s.metrics.AddDashboardStreams(1)
	var once sync.Once
	return events, func() {
		once.Do(func() {
			unsubscribe()
			s.metrics.AddDashboardStreams(-1)
		})
	}, nil
}

// Invalidate drops the cached aggregate.
func (s *DashboardService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, DashboardCacheKey)
}

// RunInvalidator drops the cached aggregate on every change notification until ctx is done.
func (s *DashboardService) RunInvalidator(ctx context.Context) error {
	if s.feed == nil {
		<-ctx.Done()
		return nil
	}
	events, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("dashboard cache invalidated", zap.String("channel", evt.Channel), zap.Bool("resync", evt.Resync))
			s.Invalidate(ctx)
		}
	}
}

// Export renders the post list in format.
func (s *DashboardService) Export(ctx context.Context, format string) (*ExportFile, error) {
	exporter, err := export.ForFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list blog posts")
	}

	dataset := export.Dataset{
		Title:   "Blog posts",
		Headers: []string{"Title", "Author", "Date", "Short info"},
		Rows:    make([]map[string]string, 0, len(posts)),
	}
	for _, post := range posts {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Title":      post.Title,
			"Author":     post.Author,
			"Date":       post.Date.UTC().Format("2006-01-02 15:04"),
			"Short info": post.ShortInfo,
		})
	}
	content, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	return &ExportFile{
		Filename:    "blog-posts-" + s.now().UTC().Format("20060102-150405") + "." + exporter.Extension(),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}

func (s *DashboardService) compose(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	var (
		totalPosts int
		totalUsers int
		posts      []models.BlogPost
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		start := time.Now()
		count, err := s.posts.Count(gctx)
		s.metrics.ObserveDBQuery("blog_posts_count", time.Since(start))
		if err != nil {
			return appErrors.Internal(err, "failed to count blog posts")
		}
		totalPosts = count
		return nil
	})
	group.Go(func() error {
		start := time.Now()
		count, err := s.users.Count(gctx)
		s.metrics.ObserveDBQuery("user_accounts_count", time.Since(start))
		if err != nil {
			return appErrors.Internal(err, "failed to count users")
		}
		totalUsers = count
		return nil
	})
	group.Go(func() error {
		start := time.Now()
		list, err := s.posts.List(gctx)
		s.metrics.ObserveDBQuery("blog_posts_list", time.Since(start))
		if err != nil {
			return appErrors.Internal(err, "failed to list blog posts")
		}
		posts = list
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i := range posts {
		decorateImageURL(s.cfg.ImageBaseURL, &posts[i])
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	return &dto.AdminDashboardResponse{
		TotalPosts:  totalPosts,
		TotalUsers:  totalUsers,
		Posts:       posts,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *DashboardService) tryCache(ctx context.Context) (*dto.AdminDashboardResponse, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached dto.AdminDashboardResponse
	hit, err := s.cache.Get(ctx, DashboardCacheKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, value *dto.AdminDashboardResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, DashboardCacheKey, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", DashboardCacheKey), zap.Error(err))
	}
}
