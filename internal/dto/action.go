package dto

// ActionState is the result of a failed form action. Successful actions
// redirect instead of returning a body.
type ActionState struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ActionFailure builds the failed ActionState for message.
func ActionFailure(message string) ActionState {
	return ActionState{OK: false, Message: message}
}
