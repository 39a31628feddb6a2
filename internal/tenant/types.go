package tenant

import (
	"strings"
	"time"
)

// historyTimeLayouts are the timestamp forms seen in history responses.
var historyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// TaskStatus is the remote task state.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailed  TaskStatus = "FAILED"
)

// Terminal reports whether no further transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Normalize upper-cases statuses the service sends in mixed case.
func (s TaskStatus) Normalize() TaskStatus {
	return TaskStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

// Endpoint paths relative to the tenant base URL.
const (
	EndpointSubmit   = "/proxy/complete_image_edit"
	EndpointTasks    = "/proxy/tasks/"
	EndpointHistory  = "/proxy/tasks/history"
	EndpointImages   = "/proxy/static/images/"
	completeSuffix   = "/complete"
	defaultFileType  = "image"
	maxSecondaryImgs = 3
)

// Image is one raster to upload.
type Image struct {
	Name string // file name sent in the multipart header
	Data []byte // encoded bytes, PNG unless ContentType says otherwise

	ContentType string
}

// SubmitRequest is the multipart edit request.
type SubmitRequest struct {
	Primary   Image
	Secondary []Image // at most three, sent as image_2..image_4
	Prompt    string
	FileType  string // defaults to "image"
}

// SubmitResponse is returned when a task is accepted.
type SubmitResponse struct {
	TaskID  string     `json:"taskId"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Outputs []string   `json:"outputs,omitempty"`
}

// StatusResponse is one poll result.
type StatusResponse struct {
	TaskID   string     `json:"taskId"`
	Status   TaskStatus `json:"status"`
	Progress *float64   `json:"progress,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// completeResponse is the raw completion body.
type completeResponse struct {
	StoragePaths []string `json:"storagePaths"`
	Outputs      []string `json:"outputs"`
}

// HistoryItem is one entry of the remote task history.
type HistoryItem struct {
	ID               int        `json:"id"`
	TenantTaskID     string     `json:"tenant_task_id"`
	UserID           string     `json:"user_id"`
	RunningHubTaskID string     `json:"runninghub_task_id"`
	TaskType         string     `json:"task_type"`
	Status           TaskStatus `json:"status"`
	CreatedAt        string     `json:"created_at"`
	CompletedAt      *string    `json:"completed_at"`
	StoragePaths     []string   `json:"storage_paths"`
	ImageURLs        []string   `json:"image_urls"`
	ErrorMessage     *string    `json:"error_message"`
}

// Created parses CreatedAt, returning the zero time when it is unparseable.
func (h HistoryItem) Created() time.Time {
	for _, layout := range historyTimeLayouts {
		if t, err := time.Parse(layout, h.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}
