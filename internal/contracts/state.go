package contracts

// QueryState is the per-query pipeline state. Every query walks the states
// in order; Failed is terminal and is only left by a new query or a forced
// refresh, which bumps the cache epoch and restarts from ResolvingRange.
type QueryState string

const (
	StateIdle                 QueryState = "IDLE"
	StateResolvingRange       QueryState = "RESOLVING_RANGE"
	StateFetchingRanking      QueryState = "FETCHING_RANKING"
	StateRankingReady         QueryState = "RANKING_READY"
	StateFetchingPrice        QueryState = "FETCHING_PRICE"
	StateFetchingBranchDetail QueryState = "FETCHING_BRANCH_DETAIL"
	StateReconciled           QueryState = "RECONCILED"
	StateFailed               QueryState = "FAILED"
)

// String returns the state name.
func (s QueryState) String() string {
	return string(s)
}

// Terminal reports whether the query is finished in this state.
func (s QueryState) Terminal() bool {
	return s == StateReconciled || s == StateFailed
}

// QueryEvent is one state transition, pushed to progress subscribers.
type QueryEvent struct {
	StockID string     `json:"stock_id"`
	State   QueryState `json:"state"`
	Detail  string     `json:"detail,omitempty"`
}
