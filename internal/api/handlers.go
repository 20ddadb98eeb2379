package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"minutes/internal/artifacts"
	"minutes/internal/jobstate"
	"minutes/internal/logging"
	"minutes/internal/metrics"
	"minutes/internal/queue"
	"minutes/internal/services"
)

type uploadResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

type meetingResponse struct {
	JobID          string                           `json:"job_id"`
	SummaryItems   []artifacts.SummaryItem          `json:"summary_items"`
	ActionItems    []artifacts.ActionItem           `json:"action_items"`
	Segments       []artifacts.TranscriptSegment    `json:"segments"`
	QualityMetrics *artifacts.SummaryQualityMetrics `json:"quality_metrics"`
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		s.writeError(w, http.StatusBadRequest, "uploaded file must include a filename")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		s.writeError(w, http.StatusUnsupportedMediaType, "unsupported media type, upload a video file")
		return
	}

	jobID := uuid.NewString()
	jobDir := filepath.Join(s.uploadRoot, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		s.logger.Error("failed to create job directory",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to initialize storage for upload")
		return
	}

	destination := filepath.Join(jobDir, filename)
	if err := storeUpload(destination, file); err != nil {
		s.logger.Error("failed to store upload",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}

	if err := s.queue.Enqueue(r.Context(), queue.NewIngestTask(jobID, destination)); err != nil {
		s.logger.Error("failed to enqueue ingest task",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue processing job")
		return
	}
	metrics.RecordJobEnqueued()

	s.logger.Info("upload accepted",
		logging.String(logging.FieldJobID, jobID),
		logging.String("filename", filename))
	s.writeJSON(w, http.StatusAccepted, uploadResponse{
		JobID:     jobID,
		StatusURL: "/api/jobs/" + jobID,
	})
}

func storeUpload(destination string, source io.Reader) error {
	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, source); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summaries, err := s.jobs.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []jobstate.Summary{}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, err := jobstate.SanitizeJobID(strings.TrimPrefix(r.URL.Path, "/api/jobs/"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	detail, err := s.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summaries, err := s.jobs.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meetings := make([]jobstate.Summary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Status == jobstate.StatusCompleted {
			meetings = append(meetings, summary)
		}
	}
	s.writeJSON(w, http.StatusOK, meetings)
}

func (s *Server) handleMeeting(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobstate.SanitizeJobID(strings.TrimPrefix(r.URL.Path, "/api/meetings/"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.getMeeting(w, jobID)
	case http.MethodDelete:
		s.deleteMeeting(w, jobID)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getMeeting(w http.ResponseWriter, jobID string) {
	if !s.jobs.Exists(jobID) {
		s.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	jobDir := s.jobs.JobDir(jobID)

	segments, err := artifacts.LoadTranscriptSegments(jobDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summaryItems, err := artifacts.LoadSummaryItems(jobDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	actionItems, err := artifacts.LoadActionItems(jobDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	quality, err := artifacts.LoadSummaryQuality(jobDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if segments == nil {
		segments = []artifacts.TranscriptSegment{}
	}
	if summaryItems == nil {
		summaryItems = []artifacts.SummaryItem{}
	}
	if actionItems == nil {
		actionItems = []artifacts.ActionItem{}
	}

	s.writeJSON(w, http.StatusOK, meetingResponse{
		JobID:          jobID,
		SummaryItems:   summaryItems,
		ActionItems:    actionItems,
		Segments:       segments,
		QualityMetrics: quality,
	})
}

func (s *Server) deleteMeeting(w http.ResponseWriter, jobID string) {
	if !s.jobs.Exists(jobID) {
		s.writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	summary := s.jobs.Summarize(jobID)
	if !summary.CanDelete {
		s.writeError(w, http.StatusConflict, "meeting is not completed and cannot be deleted")
		return
	}
	if err := os.RemoveAll(s.jobs.JobDir(jobID)); err != nil {
		s.logger.Error("failed to remove job directory",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete meeting artifacts")
		return
	}
	s.logger.Info("meeting deleted", logging.String(logging.FieldJobID, jobID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
