package domain

import "time"

type Entrance string

const (
	EntranceMain Entrance = "Main Entrance"
	EntranceSide Entrance = "Side Entrance"
)

// ConversationContext carries the per-session assistant state. The dialogue
// state is implicit in the field combination: SelectedParking unset is Idle,
// SelectedParking set with Entrance unset is AwaitingEntrance, both set is
// Resolved. Entrance is never set while SelectedParking is unset.
type ConversationContext struct {
	SessionID       string    `json:"session_id"`
	LastQuery       string    `json:"last_query"`
	SelectedParking string    `json:"selected_parking"`
	Entrance        Entrance  `json:"entrance"`
	Turns           int       `json:"turns"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConversationState string

const (
	StateIdle             ConversationState = "idle"
	StateAwaitingEntrance ConversationState = "awaiting_entrance"
	StateResolved         ConversationState = "resolved"
)

func (c ConversationContext) State() ConversationState {
	switch {
	case c.SelectedParking == "":
		return StateIdle
	case c.Entrance == "":
		return StateAwaitingEntrance
	default:
		return StateResolved
	}
}

type ChatMessageDTO struct {
	Message string `json:"message" binding:"required"`
}

type ChatResponseDTO struct {
	Reply   string              `json:"reply"`
	Context ConversationContext `json:"context"`
}
