package enums

// AgentAction is the decision an agent can take on a pending assignment.
type AgentAction string

const (
	AgentActionAccept AgentAction = "accept"
	AgentActionReject AgentAction = "reject"
)

// String implements fmt.Stringer.
func (a AgentAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AgentAction.
func (a AgentAction) IsValid() bool {
	return a == AgentActionAccept || a == AgentActionReject
}
