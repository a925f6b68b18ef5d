package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"belltower/internal/bell"
	"belltower/internal/domain"
	"belltower/internal/playback"
	"belltower/internal/store"
)

// maxUploadBytes caps track uploads.
const maxUploadBytes = 50 << 20

var allowedExts = map[string]bool{".mp3": true, ".wav": true, ".ogg": true, ".flac": true}

type Server struct {
	repo     store.Repository
	mediaDir string
}

func NewServer(repo store.Repository, mediaDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{repo: repo, mediaDir: mediaDir}

	r.Get("/health", s.health)
	r.Get("/api/server-time", s.serverTime)

	r.Post("/api/schedules", s.createSchedule)
	r.Get("/api/schedules", s.listSchedules)
	r.Get("/api/schedules/{id}", s.getSchedule)
	r.Put("/api/schedules/{id}", s.updateSchedule)
	r.Delete("/api/schedules/{id}", s.deleteSchedule)
	r.Post("/api/schedules/{id}/toggle", s.toggleSchedule)

	r.Post("/api/exceptions", s.createException)
	r.Get("/api/exceptions", s.listExceptions)
	r.Delete("/api/exceptions/{id}", s.deleteException)

	r.Post("/api/tracks", s.uploadTrack)
	r.Get("/api/tracks", s.listTracks)
	r.Get("/api/tracks/{id}", s.getTrack)
	r.Delete("/api/tracks/{id}", s.deleteTrack)

	r.Get("/api/bells/next", s.nextBell)
	r.Get("/api/bells/day", s.dayBells)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) serverTime(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, 200, map[string]any{
		"now":      now.Format(time.RFC3339),
		"date":     domain.DateOf(now).String(),
		"timezone": now.Location().String(),
	})
}

type scheduleReq struct {
	Name    string   `json:"name"`
	Days    []string `json:"days"`
	At      string   `json:"at"`
	TrackID *string  `json:"track_id"`
	Active  *bool    `json:"active"`
}

type createResp struct {
	ID string `json:"id"`
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	days, err := domain.ParseDaySet(strings.Join(req.Days, ","))
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	at, err := domain.ParseTimeOfDay(req.At)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.TrackID != nil {
		if _, err := s.repo.GetTrack(r.Context(), *req.TrackID); err != nil {
			http.Error(w, "unknown track", 400)
			return
		}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	id, err := s.repo.CreateSchedule(r.Context(), domain.Schedule{
		Name: req.Name, Days: days, At: at, TrackID: req.TrackID, Active: active,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, createResp{ID: id})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.repo.ListSchedules(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, schedules)
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.repo.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, schedule)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.repo.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name != "" {
		schedule.Name = req.Name
	}
	if len(req.Days) > 0 {
		days, err := domain.ParseDaySet(strings.Join(req.Days, ","))
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		schedule.Days = days
	}
	if req.At != "" {
		at, err := domain.ParseTimeOfDay(req.At)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		schedule.At = at
	}
	if req.TrackID != nil {
		if *req.TrackID == "" {
			schedule.TrackID = nil
		} else {
			if _, err := s.repo.GetTrack(r.Context(), *req.TrackID); err != nil {
				http.Error(w, "unknown track", 400)
				return
			}
			schedule.TrackID = req.TrackID
		}
	}
	if req.Active != nil {
		schedule.Active = *req.Active
	}

	if err := s.repo.UpdateSchedule(r.Context(), schedule); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, schedule)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.repo.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	schedule.Active = !schedule.Active
	if err := s.repo.UpdateSchedule(r.Context(), schedule); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, schedule)
}

type exceptionReq struct {
	Date       string  `json:"date"`
	ScheduleID *string `json:"schedule_id"`
	Reason     string  `json:"reason"`
}

func (s *Server) createException(w http.ResponseWriter, r *http.Request) {
	var req exceptionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.ScheduleID != nil {
		if _, err := s.repo.GetSchedule(r.Context(), *req.ScheduleID); err != nil {
			http.Error(w, "unknown schedule", 400)
			return
		}
	}
	id, err := s.repo.CreateException(r.Context(), domain.Exception{
		Date: date, ScheduleID: req.ScheduleID, Reason: req.Reason,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, createResp{ID: id})
}

func (s *Server) listExceptions(w http.ResponseWriter, r *http.Request) {
	var (
		exceptions []domain.Exception
		err        error
	)
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, perr := domain.ParseDate(raw)
		if perr != nil {
			http.Error(w, perr.Error(), 400)
			return
		}
		exceptions, err = s.repo.ListExceptionsForDate(r.Context(), date)
	} else {
		exceptions, err = s.repo.ListExceptions(r.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, exceptions)
}

func (s *Server) deleteException(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteException(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadTrack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", 400)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExts[ext] {
		http.Error(w, fmt.Sprintf("unsupported audio format %q", ext), 400)
		return
	}

	id := "trk_" + uuid.NewString()
	dstPath := filepath.Join(s.mediaDir, id+ext)
	dst, err := os.Create(dstPath)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		http.Error(w, err.Error(), 500)
		return
	}
	dst.Close()

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	// Duration is informational; a file the embedded decoders can't fully
	// parse still uploads with duration 0.
	duration, err := playback.TrackDuration(dstPath)
	if err != nil {
		log.Warn().Err(err).Str("track", dstPath).Msg("duration probe failed")
		duration = 0
	}

	track := domain.Track{
		ID:       id,
		Name:     name,
		Path:     dstPath,
		Format:   strings.TrimPrefix(ext, "."),
		Duration: duration,
	}
	if _, err := s.repo.CreateTrack(r.Context(), track); err != nil {
		os.Remove(dstPath)
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.repo.ListTracks(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, tracks)
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.repo.GetTrack(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, track)
}

func (s *Server) deleteTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.repo.GetTrack(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if err := s.repo.DeleteTrack(r.Context(), track.ID); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if err := os.Remove(track.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("track", track.Path).Msg("remove track file")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) nextBell(w http.ResponseWriter, r *http.Request) {
	// Two weeks covers any weekly schedule plus a run of exception days.
	schedule, at, err := bell.NextBell(r.Context(), s.repo, time.Now(), 14*24*time.Hour)
	if errors.Is(err, bell.ErrNoUpcomingBell) {
		http.Error(w, "no upcoming bell", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{
		"schedule": schedule,
		"at":       at.Format(time.RFC3339),
	})
}

func (s *Server) dayBells(w http.ResponseWriter, r *http.Request) {
	day := domain.DateOf(time.Now())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := domain.ParseDate(raw)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		day = parsed
	}
	bells, err := bell.ResolveDay(r.Context(), s.repo, day)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{
		"date":  day.String(),
		"bells": bells,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
