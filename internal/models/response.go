package models

import "time"

// ErrorResponse is the JSON body returned for every failed request,
// produced by the centralized error-handler middleware.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// PresignResponse is the Chat API's upload/presign response.
type PresignResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
	ExpiresIn int     `json:"expires_in"`
}

// DownloadURLResponse is the Chat API's attachment url response.
type DownloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int     `json:"expires_in"`
}

// ByObjectResponse is the response for the by-object dialog lookup.
type ByObjectResponse struct {
	Dialog  *DialogSummary `json:"dialog,omitempty"`
	CanJoin bool           `json:"can_join"`
}
