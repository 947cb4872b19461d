package model

import "time"

// ProviderStatus is the verification state of a listed business. Entries
// can only be submitted against approved providers.
type ProviderStatus string

const (
	ProviderPending  ProviderStatus = "pending"
	ProviderApproved ProviderStatus = "approved"
	ProviderRejected ProviderStatus = "rejected"
)

// Provider is a listed business that entries are submitted against.
type Provider struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	IndustryKey string         `json:"industry_key"`
	Status      ProviderStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}
