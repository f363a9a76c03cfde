package member

import "time"

type MemberDTO struct {
	Address      string    `json:"address"`
	Registered   bool      `json:"registered"`
	Status       string    `json:"verification_status"`
	RegisteredBy string    `json:"registered_by,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type StatusDTO struct {
	Address    string `json:"address"`
	Registered bool   `json:"registered"`
	Status     string `json:"verification_status"`
}
