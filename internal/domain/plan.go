package domain

// Plan enumerates subscription tiers used for admission control. Billing
// truth lives outside this core; the plan only selects rate limits.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPersonal Plan = "personal"
	PlanPro      Plan = "pro"
)

// QuotaPeriod selects the window a plan's job quota is counted over.
type QuotaPeriod string

const (
	QuotaPeriodDay   QuotaPeriod = "day"
	QuotaPeriodMonth QuotaPeriod = "month"
)

// PlanLimits carries the admission-control knobs for one tier.
type PlanLimits struct {
	MaxJobs        int
	Period         QuotaPeriod
	ConcurrentJobs int
}

// DefaultPlanLimits mirrors the product defaults; deployments override them
// via configuration.
func DefaultPlanLimits() map[Plan]PlanLimits {
	return map[Plan]PlanLimits{
		PlanFree:     {MaxJobs: 5, Period: QuotaPeriodDay, ConcurrentJobs: 1},
		PlanPersonal: {MaxJobs: 100, Period: QuotaPeriodMonth, ConcurrentJobs: 3},
		PlanPro:      {MaxJobs: 1000, Period: QuotaPeriodMonth, ConcurrentJobs: 5},
	}
}
