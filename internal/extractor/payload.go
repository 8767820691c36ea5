package extractor

import "time"

// CalendarPayload is the source-specific shape of a provider.RawItem.Payload
// for source=calendar, decoded at the top of Extract.
type CalendarPayload struct {
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Attendees  []string  `json:"attendees,omitempty"`
	Location   string    `json:"location,omitempty"`
	Recurrence string    `json:"recurrence,omitempty"`
	AllDay     bool      `json:"all_day,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}

// MailPayload is the source-specific shape for source=mail.
type MailPayload struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body,omitempty"`
	Sender  string    `json:"sender,omitempty"`
	Labels  []string  `json:"labels,omitempty"`
	At      time.Time `json:"at"`
}

// TaskManagerPayload is the source-specific shape for source=task_manager.
type TaskManagerPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
}
