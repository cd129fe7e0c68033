package chat

import "time"

// Session captures a transient anonymous conversation. It lives only in process memory.
type Session struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profileId"`
	Unlocked      bool      `json:"unlocked"`
	SearchEnabled bool      `json:"searchEnabled"`
	Turns         []Turn    `json:"turns,omitempty"`
	Epoch         uint64    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Counts returns the number of user and assistant turns in the transcript.
func (s Session) Counts() (user, assistant int) {
	for _, turn := range s.Turns {
		switch turn.Role {
		case RoleUser:
			user++
		case RoleAssistant:
			assistant++
		}
	}
	return user, assistant
}
