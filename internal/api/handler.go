package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
	"github.com/framelab/frame-extraction-service/internal/domain/port"
	"github.com/framelab/frame-extraction-service/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	version        = "1.0.0"
	maxFieldBytes  = 256
	multipartSlack = 1 << 20
)

// Canceller stops an extraction that runs in this process.
type Canceller interface {
	Cancel(sessionID string) bool
}

type Handler struct {
	ingest     *usecase.IngestVideoUseCase
	store      port.SessionStore
	catalog    *usecase.FrameCatalog
	dispatcher port.ExtractionDispatcher
	canceller  Canceller
	zipper     port.Zipper
	maxUpload  int64
	logger     *zap.Logger
}

type HandlerDeps struct {
	Ingest     *usecase.IngestVideoUseCase
	Store      port.SessionStore
	Catalog    *usecase.FrameCatalog
	Dispatcher port.ExtractionDispatcher
	// Canceller is nil when extraction runs on remote workers.
	Canceller      Canceller
	Zipper         port.Zipper
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		ingest:     deps.Ingest,
		store:      deps.Store,
		catalog:    deps.Catalog,
		dispatcher: deps.Dispatcher,
		canceller:  deps.Canceller,
		zipper:     deps.Zipper,
		maxUpload:  deps.MaxUploadBytes,
		logger:     deps.Logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version,
	})
}

// UploadVideo streams a multipart upload (`file` and `fps` parts) into a new
// session and schedules its extraction. The target rate may also be given as
// the `fps` query parameter.
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartSlack)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read multipart body: %v", err))
		return
	}

	fps := 0
	if q := r.URL.Query().Get("fps"); q != "" {
		if fps, err = parseFPS(q); err != nil {
			h.respondErr(w, err)
			return
		}
	}

	var (
		video       *entity.SourceVideo
		notifyEmail string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if err = wrapBodyErr(err); entity.KindOf(err) == entity.KindInternal {
				h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Malformed multipart body: %v", err))
				return
			}
			h.respondErr(w, err)
			return
		}

		switch part.FormName() {
		case "fps":
			value, err := readField(part)
			if err == nil {
				fps, err = parseFPS(value)
			}
			if err != nil {
				part.Close()
				h.respondErr(w, err)
				return
			}
		case "notify_email":
			notifyEmail, err = readField(part)
			if err != nil {
				part.Close()
				h.respondErr(w, err)
				return
			}
		case "file":
			if video != nil {
				part.Close()
				h.respondError(w, http.StatusBadRequest, "Only one video file may be uploaded")
				return
			}
			video, err = h.storeFilePart(r.Context(), part)
			if err != nil {
				part.Close()
				h.respondErr(w, err)
				return
			}
		}
		part.Close()
	}

	if video == nil {
		h.respondError(w, http.StatusBadRequest, "Missing video file")
		return
	}
	if fps <= 0 {
		h.respondErr(w, entity.Errorf(entity.KindValidation, "fps is required"))
		return
	}

	req := entity.ExtractionRequest{
		SessionID:     video.SessionID,
		TargetFPS:     fps,
		VideoSize:     video.Size,
		VideoChecksum: video.Checksum,
		NotifyEmail:   notifyEmail,
	}
	if err := h.dispatcher.Dispatch(r.Context(), req); err != nil {
		h.logger.Error("failed to dispatch extraction", zap.String("session_id", video.SessionID), zap.Error(err))
		h.respondErr(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, UploadVideoResponse{
		SessionID: video.SessionID,
		Status:    string(entity.SessionStatusPending),
		Message:   "video uploaded, extracting frames",
		Size:      video.Size,
		Checksum:  video.Checksum,
	})
}

func (h *Handler) storeFilePart(ctx context.Context, part *multipart.Part) (*entity.SourceVideo, error) {
	filename := part.FileName()
	// An undeclared type is passed on as-is and rejected by the allow-list.
	contentType := part.Header.Get("Content-Type")
	if err := h.ingest.CheckUpload(filename, contentType); err != nil {
		return nil, err
	}

	sessionID, err := h.ingest.CreateSession()
	if err != nil {
		return nil, err
	}

	video, err := h.ingest.StoreVideo(ctx, part, filename, contentType, sessionID)
	if err != nil {
		return nil, wrapBodyErr(err)
	}
	return video, nil
}

// GetStatus returns the status record of a known session.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if !h.store.Exists(sessionID) {
		h.respondErr(w, entity.Errorf(entity.KindNotFound, "session %s not found", sessionID))
		return
	}

	record, err := h.store.ReadStatus(sessionID)
	if err != nil {
		h.logger.Error("failed to read status", zap.String("session_id", sessionID), zap.Error(err))
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

func (h *Handler) ListFrames(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	frames, err := h.catalog.List(sessionID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, FramesResponse{Frames: frames})
}

func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	name := r.PathValue("frame_name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		h.respondError(w, http.StatusBadRequest, "Invalid frame name")
		return
	}

	f, info, err := h.catalog.Open(sessionID, name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// GetArchive streams a zip of every frame of the session.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	paths, err := h.catalog.Paths(sessionID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if len(paths) == 0 {
		h.respondErr(w, entity.Errorf(entity.KindNotFound, "session %s has no frames", sessionID))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_frames.zip"`, sessionID))
	w.WriteHeader(http.StatusOK)

	if err := h.zipper.WriteZip(r.Context(), w, paths); err != nil {
		// Headers are already sent; the truncated body is all the client gets.
		h.logger.Error("failed to stream archive", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (h *Handler) CancelExtraction(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if h.canceller == nil {
		h.respondError(w, http.StatusNotImplemented, "Extraction runs on remote workers and cannot be cancelled here")
		return
	}
	if !h.canceller.Cancel(sessionID) {
		h.respondErr(w, entity.Errorf(entity.KindConflict, "no extraction running for session %s", sessionID))
		return
	}

	h.logger.Info("extraction cancel requested", zap.String("session_id", sessionID))
	h.respondJSON(w, http.StatusAccepted, CancelResponse{SessionID: sessionID, Status: "canceling"})
}

// sessionID reads and validates the session path parameter. Only canonical
// ids are accepted, so the value is always safe to use as a path segment.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("session_id")
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		h.respondError(w, http.StatusBadRequest, "Invalid session id")
		return "", false
	}
	return raw, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.respondError(w, status, message)
}

func parseFPS(value string) (int, error) {
	fps, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || fps <= 0 {
		return 0, entity.Errorf(entity.KindValidation, "fps must be a positive integer, got %q", value)
	}
	return fps, nil
}

func readField(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFieldBytes+1))
	if err != nil {
		return "", wrapBodyErr(err)
	}
	if len(data) > maxFieldBytes {
		return "", entity.Errorf(entity.KindValidation, "form field too long")
	}
	return string(data), nil
}

// wrapBodyErr reports a body that outgrew the request limit as a size error.
func wrapBodyErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return entity.NewError(entity.KindSizeLimit, "request body too large", err)
	}
	return err
}
