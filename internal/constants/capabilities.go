package constants

// Capability names checked by the capability gate.
const (
	InvestFunds   = "invest_funds"
	WithdrawFunds = "withdraw_funds"
	ReviewExits   = "review_exits"
)

// CapabilityDef describes a registry entry seeded at startup.
type CapabilityDef struct {
	Name            string
	Description     string
	DefaultOnSignup bool
	RequiresKYC     bool
}

// DefaultCapabilities is the registry every deployment starts with.
var DefaultCapabilities = []CapabilityDef{
	{Name: InvestFunds, Description: "Acquire units of listed properties", DefaultOnSignup: true, RequiresKYC: true},
	{Name: WithdrawFunds, Description: "Request exit of owned units", DefaultOnSignup: true, RequiresKYC: true},
	{Name: ReviewExits, Description: "Approve or reject exit requests"},
}
