package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/vlad-lazar/sokrati/internal/models"
	"github.com/vlad-lazar/sokrati/internal/notes"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// noteResponse flattens the sentiment pair onto the note.
type noteResponse struct {
	ID                 string              `json:"id"`
	OwnerID            string              `json:"ownerId"`
	Text               string              `json:"text"`
	Attachments        []models.Attachment `json:"attachments"`
	IsFavourite        bool                `json:"isFavourite"`
	SentimentScore     *float64            `json:"sentimentScore,omitempty"`
	SentimentMagnitude *float64            `json:"sentimentMagnitude,omitempty"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          *time.Time          `json:"updatedAt,omitempty"`
}

func toResponse(n *models.Note) noteResponse {
	resp := noteResponse{
		ID:          n.ID,
		OwnerID:     n.OwnerID,
		Text:        n.Text,
		Attachments: n.Attachments,
		IsFavourite: n.IsFavourite,
		Version:     n.Version,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	if resp.Attachments == nil {
		resp.Attachments = []models.Attachment{}
	}
	if n.Sentiment != nil {
		score, magnitude := n.Sentiment.Score, n.Sentiment.Magnitude
		resp.SentimentScore = &score
		resp.SentimentMagnitude = &magnitude
	}
	return resp
}

type sentimentPointResponse struct {
	Bucket       time.Time `json:"bucket"`
	Label        string    `json:"label"`
	AverageScore float64   `json:"averageScore"`
	Count        int       `json:"count"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var in models.CreateNoteInput
	if !s.decode(w, r, &in) {
		return
	}

	note, err := s.notes.CreateNote(r.Context(), callerID(r.Context()), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":   note.ID,
		"note": toResponse(note),
	})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	filter := notes.ListFilter{
		OwnerID:        r.URL.Query().Get("ownerId"),
		FavouritesOnly: r.URL.Query().Get("filter") == "favourites",
	}
	list, err := s.notes.ListNotes(r.Context(), callerID(r.Context()), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]noteResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.GetNote(r.Context(), callerID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(note))
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var in models.UpdateNoteInput
	if !s.decode(w, r, &in) {
		return
	}

	note, err := s.notes.UpdateNote(r.Context(), callerID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	message := "Note updated successfully."
	if in.Empty() {
		message = "No relevant fields provided for update."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"note":    toResponse(note),
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.notes.DeleteNote(r.Context(), callerID(r.Context()), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully."})
}

func (s *Server) handleSentimentOverTime(w http.ResponseWriter, r *http.Request) {
	rng := notes.ParseRange(r.URL.Query().Get("range"))
	points, err := s.notes.AggregateSentimentOverTime(r.Context(), callerID(r.Context()), rng)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]sentimentPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, sentimentPointResponse{
			Bucket:       p.Bucket,
			Label:        label(p),
			AverageScore: round2(p.AverageScore),
			Count:        p.Count,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
}

func (s *Server) handleAnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	var in analyzeRequest
	if !s.decode(w, r, &in) {
		return
	}

	result, err := s.notes.AnalyzeText(r.Context(), callerID(r.Context()), in.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Score: result.Score, Magnitude: result.Magnitude})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	revoker, ok := s.verifier.(Revoker)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorBody{
			Error: "Token revocation is not supported.",
			Kind:  "unsupported",
		})
		return
	}
	uid := callerID(r.Context())
	revoker.RevokeTokens(uid)
	s.logger.Info("Revoked tokens", zap.String("user_id", uid))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens revoked."})
}

func label(p notes.SentimentPoint) string {
	switch p.Granularity {
	case notes.PerNote:
		return "Note @ " + p.Bucket.Format("3:04 PM")
	case notes.PerMonth:
		return p.Bucket.Format("Jan 2006")
	default:
		return p.Bucket.Format("Jan 02")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// decode reads a JSON body into dst; an empty body decodes to the zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error: fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit),
			Kind:  string(notes.KindInvalidInput),
		})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error: "Invalid JSON in request body: " + err.Error(),
		Kind:  string(notes.KindInvalidInput),
	})
	return false
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := notes.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case notes.KindUnauthenticated:
		status = http.StatusUnauthorized
	case notes.KindInvalidInput:
		status = http.StatusBadRequest
	case notes.KindForbidden:
		status = http.StatusForbidden
	case notes.KindNotFound:
		status = http.StatusNotFound
	}

	message := "Something went wrong. Please try again."
	var svcErr *notes.Error
	if status != http.StatusInternalServerError && errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
	} else if status == http.StatusUnauthorized {
		message = "Unauthorized."
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: message, Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
