package application

import (
	"fmt"
	"time"
)

// EventTime unmarshals the textual timestamp formats GitLab uses across its
// webhook payloads. Formats are tried in order, first match wins, with a
// generic RFC3339 parse as a last resort.
type EventTime struct {
	time.Time
}

var eventTimeFormats = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp is not a JSON string: %s", s)
	}
	s = s[1 : len(s)-1]

	for _, layout := range eventTimeFormats {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unparseable timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

// PipelineEvent is the object_kind=pipeline payload shape. Unknown fields
// are ignored by encoding/json.
type PipelineEvent struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		ID         int64      `json:"id"`
		Ref        string     `json:"ref"`
		SHA        string     `json:"sha"`
		BeforeSHA  string     `json:"before_sha"`
		Status     string     `json:"status"`
		CreatedAt  *EventTime `json:"created_at"`
		FinishedAt *EventTime `json:"finished_at"`
	} `json:"object_attributes"`
	Project EventProject `json:"project"`
}

// JobEvent is the object_kind=build payload shape. GitLab keeps job fields
// at the top level of the payload.
type JobEvent struct {
	ObjectKind      string       `json:"object_kind"`
	BuildID         int64        `json:"build_id"`
	BuildName       string       `json:"build_name"`
	BuildStatus     string       `json:"build_status"`
	BuildStartedAt  *EventTime   `json:"build_started_at"`
	BuildFinishedAt *EventTime   `json:"build_finished_at"`
	PipelineID      int64        `json:"pipeline_id"`
	ProjectID       int64        `json:"project_id"`
	Project         EventProject `json:"project"`
}

type EventProject struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	WebURL            string `json:"web_url"`
	PathWithNamespace string `json:"path_with_namespace"`
}
