package usage

const defaultMonthlyLimit = 100

var planLimits = map[string]int{
	"ai_addon": 100,
	"ai-addon": 100,
	"ki_addon": 100,
	"bundle":   100,
}

// LimitForPlan returns the monthly analysis allowance for a plan.
func LimitForPlan(plan string) int {
	if limit, ok := planLimits[plan]; ok {
		return limit
	}
	return defaultMonthlyLimit
}
