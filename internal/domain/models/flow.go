package models

// Flow identifies which of the two reconciliation flows a record belongs to.
type Flow string

const (
	// FlowFarmer is the milk-purchase flow: the owner buys milk from farmers.
	FlowFarmer Flow = "farmer"
	// FlowMember is the milk-selling flow: the owner sells milk to members.
	FlowMember Flow = "member"
)

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowFarmer || f == FlowMember
}

func (f Flow) String() string {
	return string(f)
}
