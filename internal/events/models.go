package events

// RerunEvent describes a terminal transition of a rerun attempt.
type RerunEvent struct {
	SourceKey      string `json:"source_key"`
	DestinationKey string `json:"destination_key"`
	Username       string `json:"username"`
	State          string `json:"state"`
	StateInfo      string `json:"state_info,omitempty"`
}
