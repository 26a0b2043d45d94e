package usecase

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"portfolio-functions/internal/domain"
)

const (
	DefaultVisitorCacheTTL = time.Hour
	TotalCountKey          = "count"
)

// DefaultProjects maps project identifiers to the hostnames they are served on.
func DefaultProjects() map[string]string {
	return map[string]string{
		"portfolio":     "harigo.me",
		"daily-habits":  "daily.harigo.me",
		"poker-planner": "planner.harigo.me",
	}
}

type ReportClient interface {
	ActiveUsers(ctx context.Context, r domain.DateRange) (int64, error)
	UsersByHost(ctx context.Context, r domain.DateRange) (map[string]int64, error)
}

// VisitorService serves visitor counts from a process-local cache that is
// refreshed from the analytics API at most once per TTL.
type VisitorService struct {
	reports  ReportClient
	projects map[string]string
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	cached   domain.VisitorCounts
	cachedAt time.Time
}

type VisitorOption func(*VisitorService)

func WithVisitorCacheTTL(ttl time.Duration) VisitorOption {
	return func(s *VisitorService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithVisitorClock(now func() time.Time) VisitorOption {
	return func(s *VisitorService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewVisitorService(reports ReportClient, projects map[string]string, opts ...VisitorOption) (*VisitorService, error) {
	if reports == nil {
		return nil, errors.New("usecase: report client must not be nil")
	}
	if len(projects) == 0 {
		projects = DefaultProjects()
	}
	normalized := make(map[string]string, len(projects))
	for id, host := range projects {
		id, host = strings.TrimSpace(id), strings.ToLower(strings.TrimSpace(host))
		if id == "" || host == "" {
			return nil, errors.New("usecase: project id and hostname must not be empty")
		}
		if id == TotalCountKey {
			return nil, errors.New("usecase: project id \"count\" is reserved")
		}
		normalized[id] = host
	}
	s := &VisitorService{
		reports:  reports,
		projects: normalized,
		ttl:      DefaultVisitorCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Counts returns the property-wide total under "count" plus one entry per
// project seen in the reporting window.
func (s *VisitorService) Counts(ctx context.Context) (domain.VisitorCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != nil && now.Sub(s.cachedAt) < s.ttl {
		return maps.Clone(s.cached), nil
	}

	r := domain.RollingMonth(now)
	zerolog.Ctx(ctx).Info().Str("start_date", r.StartDate).Str("end_date", r.EndDate).Msg("fetching visitor counts")

	var total int64
	var byHost map[string]int64
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		n, err := s.reports.ActiveUsers(ctx, r)
		total = n
		return err
	})
	p.Go(func(ctx context.Context) error {
		m, err := s.reports.UsersByHost(ctx, r)
		byHost = m
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, newError(ErrorUpstream, ReasonAnalytics, err)
	}

	counts := domain.VisitorCounts{TotalCountKey: total}
	for id, users := range projectCounts(byHost, s.projects) {
		counts[id] = users
	}

	s.cached = counts
	s.cachedAt = now
	return maps.Clone(counts), nil
}

// projectCounts folds per-hostname users into projects. A hostname matches a
// project when it equals the project host or its www. variant.
func projectCounts(byHost map[string]int64, projects map[string]string) map[string]int64 {
	out := make(map[string]int64)
	for host, users := range byHost {
		host = strings.ToLower(strings.TrimSpace(host))
		for id, projectHost := range projects {
			if host == projectHost || host == "www."+projectHost {
				out[id] += users
				break
			}
		}
	}
	return out
}
