package query

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD QUERY
// Headline numbers for the landing screen: roster size, today's presence,
// today's average attention, who is in the room right now, and the session
// state. Counts come from Postgres behind a short Redis cache; the live
// presence list always bypasses the cache.
// ══════════════════════════════════════════════════════════════════════════════

// dashboardCacheKey is the Redis key for the cached daily counts.
const dashboardCacheKey = "dashboard:today"

// dashboardCacheTTL keeps the counts fresh enough for a classroom display.
const dashboardCacheTTL = 15 * time.Second

// StatsCache is the slice of the cache the dashboard needs.
type StatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardResult is the dashboard payload.
type DashboardResult struct {
	Date               string   `json:"date"`
	TotalStudents      int      `json:"total_students"`
	PresentToday       int      `json:"present_today"`
	AvgEngagementToday *float64 `json:"avg_engagement_today"`

	// PresentNow lists students currently in the live presence view.
	PresentNow      []int64 `json:"present_now"`
	PresentNowCount int     `json:"present_now_count"`

	Session *SessionStatusResult `json:"session"`
}

// DashboardHandler assembles the dashboard.
type DashboardHandler struct {
	reports  ReportStore
	presence monitoring.PresenceTracker
	sessions *monitoring.Manager
	cache    StatsCache
	log      *logger.Logger
}

// NewDashboardHandler creates a new DashboardHandler. Cache and presence are
// optional; without them the dashboard is served straight from Postgres with
// an empty live list.
func NewDashboardHandler(
	reports ReportStore,
	presence monitoring.PresenceTracker,
	sessions *monitoring.Manager,
	cache StatsCache,
	log *logger.Logger,
) *DashboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DashboardHandler{
		reports:  reports,
		presence: presence,
		sessions: sessions,
		cache:    cache,
		log:      log,
	}
}

// Handle executes the query.
func (h *DashboardHandler) Handle(ctx context.Context) (*DashboardResult, error) {
	today := timeutil.Today()

	counts, err := h.countsFor(ctx, today)
	if err != nil {
		return nil, shared.Persistence("query", "Dashboard", err)
	}

	result := &DashboardResult{
		Date:               today,
		TotalStudents:      counts.TotalStudents,
		PresentToday:       counts.PresentToday,
		AvgEngagementToday: counts.AvgEngagementToday,
		PresentNow:         []int64{},
	}

	if h.presence != nil {
		ids, err := h.presence.PresentNow(ctx)
		if err != nil {
			// Degrade to an empty live list rather than failing the page.
			h.log.Warn("live presence unavailable", logger.Err(err))
		} else if ids != nil {
			result.PresentNow = ids
		}
		result.PresentNowCount = len(result.PresentNow)
	}

	result.Session = NewSessionStatusHandler(h.sessions).Handle()

	return result, nil
}

// countsFor returns the daily counts, cached when a cache is wired.
func (h *DashboardHandler) countsFor(ctx context.Context, date string) (*DashboardCounts, error) {
	if h.cache != nil {
		var cached DashboardCounts
		if err := h.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := h.reports.Dashboard(ctx, date)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, dashboardCacheKey, counts, dashboardCacheTTL); err != nil {
			h.log.Warn("dashboard cache write failed", logger.Err(err))
		}
	}

	return counts, nil
}
