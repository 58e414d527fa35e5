package database

import "time"

// Sentinel values used when a notice carries no explicit metadata.
const (
	DefaultCategory = "General"
	DefaultSource   = "unknown"
)

// Notice is one stored circolare. (Title, PublicationDate) is its identity.
type Notice struct {
	ID              int64
	Title           string
	Body            string
	PublicationDate time.Time
	AttachmentRefs  []string
	Category        string
	Source          string
	CreatedAt       *string
}

// SaveResult tells whether SaveNotice wrote a new row.
type SaveResult int

const (
	Inserted SaveResult = iota
	AlreadyPresent
)

func (r SaveResult) String() string {
	if r == Inserted {
		return "inserted"
	}
	return "already_present"
}

// RunStatus is the outcome recorded for one ingestion run.
type RunStatus string

const (
	StatusSuccess  RunStatus = "success"
	StatusDemoMode RunStatus = "demo_mode"
	StatusError    RunStatus = "error"
)

// Valid reports whether s is one of the statuses accepted by run_logs.
func (s RunStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusDemoMode, StatusError:
		return true
	}
	return false
}

// RunLog is an append-only audit row describing one ingestion run.
type RunLog struct {
	ID           int64
	Status       RunStatus
	RecordsFound int
	RecordsSaved int
	ErrorDetail  *string
	Timestamp    *string
}

// NoticeFilter narrows RecentNotices. Zero values mean "no constraint".
type NoticeFilter struct {
	Limit    int
	Category string
	Since    time.Time
	Until    time.Time
}

// CategoryCount is the number of notices stored under one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats contains aggregate notice statistics for the dashboard.
type Stats struct {
	Total       int
	Last7Days   int
	Last24Hours int
	PerCategory []CategoryCount
	MostRecent  *time.Time
	RunLogs     int
}
