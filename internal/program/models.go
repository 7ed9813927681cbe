package program

// Session is a conference session (a slot in the program), not a login session
type Session struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
}

// Presentation is a talk within a session, joined with its speaker's name
type Presentation struct {
	ID          int64   `json:"id"`
	SessionID   int64   `json:"session_id"`
	SpeakerID   int64   `json:"speaker_id"`
	Title       string  `json:"title"`
	Abstract    string  `json:"abstract"`
	CoAuthors   *string `json:"co_authors"`
	Affiliation *string `json:"affiliation"`
	SpeakerName *string `json:"speaker_name"`
}

// SessionDetail is the response body of GET /api/sessions/:id
type SessionDetail struct {
	Session       *Session       `json:"session"`
	Presentations []Presentation `json:"presentations"`
}
