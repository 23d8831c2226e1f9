package model

// Event records mirror state transitions for audit sinks. Amounts are
// string-encoded decimals so JSON consumers never lose precision.

const (
	EventStrategyCreated = "strategy_created"
	EventStrategyUpdated = "strategy_updated"
	EventStrategyDeleted = "strategy_deleted"
	EventTrade           = "trade"
	EventFeesWithdrawn   = "fees_withdrawn"
	EventRewardsUpdated  = "rewards_updated"
	EventFeesBurned      = "fees_burned"
)

// Event is a single audit record.
type Event struct {
	Kind      string `json:"kind"`
	Timestamp uint64 `json:"ts"`

	StrategyID uint64 `json:"strategy_id,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Token0     string `json:"token0,omitempty"`
	Token1     string `json:"token1,omitempty"`

	Trader       string `json:"trader,omitempty"`
	SourceToken  string `json:"source_token,omitempty"`
	TargetToken  string `json:"target_token,omitempty"`
	SourceAmount string `json:"source_amount,omitempty"`
	TargetAmount string `json:"target_amount,omitempty"`
	FeeAmount    string `json:"fee_amount,omitempty"`
	FeePPM       uint32 `json:"fee_ppm,omitempty"`

	Caller       string `json:"caller,omitempty"`
	Token        string `json:"token,omitempty"`
	Amount       string `json:"amount,omitempty"`
	RewardAmount string `json:"reward_amount,omitempty"`
	BurnedAmount string `json:"burned_amount,omitempty"`
	PrevPPM      uint32 `json:"prev_ppm,omitempty"`
	NewPPM       uint32 `json:"new_ppm,omitempty"`
}
