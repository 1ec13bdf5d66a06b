package common

type SessionState uint

const (
	PoliciesView SessionState = iota
	LimitedHostsView
	RelaysView
	DecisionsView
)
