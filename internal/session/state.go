package session

import "errors"

// Status is the stage of the upload/extraction workflow
type Status string

const (
	Idle       Status = "idle"
	Uploading  Status = "uploading"
	Processing Status = "processing"
	Complete   Status = "complete"
	Failed     Status = "error"
)

// State is the current Status plus a message for processing and error states
type State struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Busy reports whether an extraction is in flight
func (s State) Busy() bool {
	return s.Status == Uploading || s.Status == Processing
}

var (
	// ErrBusy is returned for actions that cannot run while an extraction is in flight
	ErrBusy = errors.New("an extraction is already in progress")
	// ErrNotIdle is returned when files are selected without starting a new upload first
	ErrNotIdle = errors.New("start a new upload before selecting files")
	// ErrNotEditable is returned when editing while no completed result is active
	ErrNotEditable = errors.New("there is no completed extraction to edit")
	// ErrItemNotFound is returned when an edit targets a row that does not exist
	ErrItemNotFound = errors.New("item not found")
	// ErrUnknownField is returned when an edit targets a column the document type does not have
	ErrUnknownField = errors.New("unknown field for document type")
)
