package types

// SessionState is the state of an interview session
type SessionState string

const (
	// SessionStateStart means no question is outstanding; the next step is to ask one.
	SessionStateStart SessionState = "start"
	// SessionStateAwaitingAnswer means a question was asked and an answer is expected.
	SessionStateAwaitingAnswer SessionState = "awaiting_answer"
	// SessionStateGenerating means the next question is being generated.
	SessionStateGenerating SessionState = "generating"
)

func (s SessionState) String() string {
	return string(s)
}

// Role identifies who produced a transcript turn
type Role string

const (
	RoleQuestioner Role = "questioner"
	RoleRespondent Role = "respondent"
)

func (r Role) String() string {
	return string(r)
}
