package guard

import (
	"log"
	"time"
)

// Priority classifies how important a search call is. High-priority
// occasions get a small bonus on top of the daily API-call ceiling.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// highPriorityOccasions is the fixed allow-list of occasion types that
// qualify for the API-call bonus.
var highPriorityOccasions = map[string]bool{
	"birthday":    true,
	"anniversary": true,
	"wedding":     true,
	"graduation":  true,
}

// PriorityForOccasion maps an occasion type to a search priority
func PriorityForOccasion(occasion string) Priority {
	if highPriorityOccasions[occasion] {
		return PriorityHigh
	}
	return PriorityNormal
}

// Usage is one user's consumption for one calendar day
type Usage struct {
	Executions    int
	APICalls      int
	LastExecution time.Time
}

// UsageStore keeps day-scoped usage counters. Reserve is a single
// check-and-increment: it claims one unit of quota iff the API-call
// count is still below the limit, so two concurrent callers at the
// boundary can never both slip under the ceiling. Release undoes a
// reservation whose search never happened.
type UsageStore interface {
	Usage(userID, day string) (Usage, error)
	Record(userID, day string, now time.Time) error
	Reserve(userID, day string, apiCallLimit int, now time.Time) (bool, error)
	Release(userID, day string) error
}

// RateLimitStatus is the user-facing view of remaining quota
type RateLimitStatus struct {
	ExecutionsRemaining int       `json:"executions_remaining"`
	APICallsRemaining   int       `json:"api_calls_remaining"`
	ResetsAt            time.Time `json:"resets_at"`
}

// BudgetAllocation is advisory reporting metadata only; the guard does
// not partition spend by subsystem beyond the global ceiling check.
type BudgetAllocation struct {
	AutomationShare float64 `json:"automation_share"`
	ManualShare     float64 `json:"manual_share"`
	ReservedShare   float64 `json:"reserved_share"`
}

// SpendProvider reports aggregate automated spend for the current month.
// The guard calls it on every circuit-breaker check so the ceiling always
// reflects the latest committed totals.
type SpendProvider func() float64

// Guard enforces per-user daily execution/API quotas and the global
// monthly-spend circuit breaker. Counters live in a UsageStore keyed by
// (user, day), so the ceilings hold across restarts and instances when a
// persistent store backs it. Denial is a normal branch, never an error:
// callers fall back or skip a tier.
type Guard struct {
	store UsageStore

	dailyExecutionLimit int
	dailyAPICallLimit   int
	highPriorityBonus   int
	monthlyBudget       float64

	spendProvider SpendProvider

	now func() time.Time // injectable for tests
}

func New(store UsageStore, dailyExecutionLimit, dailyAPICallLimit, highPriorityBonus int, monthlyBudget float64, spendProvider SpendProvider) *Guard {
	return &Guard{
		store:               store,
		dailyExecutionLimit: dailyExecutionLimit,
		dailyAPICallLimit:   dailyAPICallLimit,
		highPriorityBonus:   highPriorityBonus,
		monthlyBudget:       monthlyBudget,
		spendProvider:       spendProvider,
		now:                 time.Now,
	}
}

func (g *Guard) day() string {
	return g.now().Format("2006-01-02")
}

// usage reads today's counters. A store read failure is logged and
// treated as zero usage: quota is an advisory ceiling, and blocking all
// automation on a store hiccup would be worse than a few extra calls.
func (g *Guard) usage(userID string) Usage {
	usage, err := g.store.Usage(userID, g.day())
	if err != nil {
		log.Printf("[Guard] Failed to read usage for user %s: %v", userID, err)
		return Usage{}
	}
	return usage
}

// CanExecute reports whether the user is below today's execution ceiling
func (g *Guard) CanExecute(userID string) bool {
	return g.usage(userID).Executions < g.dailyExecutionLimit
}

// CanCallSearchAPI reports whether the user is below today's API-call
// ceiling. High-priority calls get a fixed bonus on top of the ceiling.
func (g *Guard) CanCallSearchAPI(userID string, priority Priority) bool {
	limit := g.dailyAPICallLimit
	if priority == PriorityHigh {
		limit += g.highPriorityBonus
	}
	return g.usage(userID).APICalls < limit
}

// RecordUsage increments both counters. Call exactly once per successful
// external search attributable to the user, never on a denied attempt.
func (g *Guard) RecordUsage(userID string) {
	if err := g.store.Record(userID, g.day(), g.now()); err != nil {
		log.Printf("[Guard] Failed to record usage for user %s: %v", userID, err)
	}
}

// ReserveSearchCall atomically claims one unit of today's quota before
// an external search is issued. Check and increment are one store
// operation, so concurrent callers at the boundary cannot both pass.
// The caller must release the reservation if the search itself fails.
func (g *Guard) ReserveSearchCall(userID string, priority Priority) bool {
	limit := g.dailyAPICallLimit
	if priority == PriorityHigh {
		limit += g.highPriorityBonus
	}

	ok, err := g.store.Reserve(userID, g.day(), limit, g.now())
	if err != nil {
		// Same stance as reads: the quota is advisory, a store hiccup
		// must not halt automation
		log.Printf("[Guard] Failed to reserve quota for user %s, allowing: %v", userID, err)
		return true
	}
	return ok
}

// ReleaseSearchCall returns a reserved quota unit after a failed search
func (g *Guard) ReleaseSearchCall(userID string) {
	if err := g.store.Release(userID, g.day()); err != nil {
		log.Printf("[Guard] Failed to release quota for user %s: %v", userID, err)
	}
}

// EmergencyCircuitBreaker returns true while automated search is allowed.
// Once aggregate monthly spend reaches 90% of the global budget every
// automated search is refused system-wide regardless of per-user quota.
func (g *Guard) EmergencyCircuitBreaker() bool {
	if g.spendProvider == nil || g.monthlyBudget <= 0 {
		return true
	}

	spent := g.spendProvider()
	if spent >= g.monthlyBudget*0.9 {
		log.Printf("[Guard] Emergency circuit breaker tripped: %.2f of %.2f monthly budget spent", spent, g.monthlyBudget)
		return false
	}
	return true
}

// Status returns the remaining quota for a user and when it resets
func (g *Guard) Status(userID string) RateLimitStatus {
	usage := g.usage(userID)

	executionsRemaining := g.dailyExecutionLimit - usage.Executions
	if executionsRemaining < 0 {
		executionsRemaining = 0
	}
	apiCallsRemaining := g.dailyAPICallLimit - usage.APICalls
	if apiCallsRemaining < 0 {
		apiCallsRemaining = 0
	}

	// Quota resets at the next local midnight
	now := g.now()
	year, month, day := now.Date()
	resetsAt := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	return RateLimitStatus{
		ExecutionsRemaining: executionsRemaining,
		APICallsRemaining:   apiCallsRemaining,
		ResetsAt:            resetsAt,
	}
}

// Allocation exposes the fixed advisory budget split for reporting
func (g *Guard) Allocation() BudgetAllocation {
	return BudgetAllocation{
		AutomationShare: 0.40,
		ManualShare:     0.60,
		ReservedShare:   0.00,
	}
}
