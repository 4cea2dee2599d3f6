package models

import "time"

type Learner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	License   string    `json:"license"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Namespace is the ledger key for this learner's progress.
func (l Learner) Namespace() string {
	return DefaultNamespace + "/" + l.ID
}
