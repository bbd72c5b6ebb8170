package api

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UploadVideoResponse represents response after uploading video
type UploadVideoResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum"`
}

// FramesResponse lists the frames of a session in ordinal order
type FramesResponse struct {
	Frames []string `json:"frames"`
}

// CancelResponse acknowledges a cancellation request
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
