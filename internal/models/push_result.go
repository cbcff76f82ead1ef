package models

// DeliveryResult captures the provider outcome for a single send.
type DeliveryResult struct {
	ID        string `json:"id"`
	Target    Target `json:"target"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	// ResultDelivered indicates the push was acknowledged by the provider.
	ResultDelivered = "delivered"
	// ResultFailed indicates the provider rejected the push.
	ResultFailed = "failed"
)
