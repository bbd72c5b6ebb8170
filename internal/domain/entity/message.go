package entity

// ExtractionRequest asks a worker to sample the stored video of a session.
type ExtractionRequest struct {
	SessionID     string `json:"session_id"`
	TargetFPS     int    `json:"target_fps"`
	VideoSize     int64  `json:"video_size,omitempty"`
	VideoChecksum string `json:"video_checksum,omitempty"`
	NotifyEmail   string `json:"notify_email,omitempty"`
}

// SessionStatusMessage is published when an extraction reaches a terminal state.
// Frames carries the ordered frame list consumed by the annotation service.
type SessionStatusMessage struct {
	SessionID       string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	TargetFPS       int           `json:"target_fps"`
	TotalFrames     int           `json:"total_frames"`
	ProcessedFrames int           `json:"processed_frames"`
	FrameCount      int           `json:"frame_count"`
	Frames          []string      `json:"frames,omitempty"`
	ArchiveKey      string        `json:"archive_key,omitempty"`
	ErrorKind       ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Attempt         int           `json:"attempt"`
	MaxAttempts     int           `json:"max_attempts"`
}
