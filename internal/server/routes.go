package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/auth"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/domain"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)
	r.With(s.requireOwner).Post("/logout", s.logoutHandler)

	r.Route("/todos", func(r chi.Router) {
		r.Use(s.requireOwner)
		r.Get("/", s.listTodosHandler)
		r.Post("/", s.createTodoHandler)
		r.Post("/archive-completed", s.archiveCompletedHandler)
		r.Delete("/archived/{id}", s.deleteArchivedTodoHandler)
		r.Post("/archived/{id}/unarchive", s.unarchiveTodoHandler)
		r.Patch("/{id}", s.updateTodoHandler)
		r.Post("/{id}/toggle", s.toggleTodoHandler)
		r.Delete("/{id}", s.deleteTodoHandler)
	})

	return r
}

// requireOwner resolves the caller's owner id and stores it in the context.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.resolver.Resolve(r)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), owner)))
	})
}

func ownerOf(r *http.Request) string {
	owner, _ := auth.OwnerFrom(r.Context())
	return owner
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "up"})
		return
	}
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.todoService.Logout(ownerOf(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	todos, err := s.todoService.ListTodos(r.Context(), ownerOf(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to retrieve todos")
		return
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	todoResp, err := s.todoService.CreateTodo(r.Context(), ownerOf(r), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create todo")
		return
	}
	respondWithJSON(w, http.StatusCreated, todoResp)
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	updatedTodo, err := s.todoService.UpdateTodo(r.Context(), ownerOf(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update todo")
		return
	}
	respondWithJSON(w, http.StatusOK, updatedTodo)
}

func (s *Server) toggleTodoHandler(w http.ResponseWriter, r *http.Request) {
	todo, err := s.todoService.ToggleTodo(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to toggle todo")
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.todoService.DeleteTodo(r.Context(), ownerOf(r), chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, err, "Failed to delete todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteArchivedTodoHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.todoService.DeleteArchivedTodo(r.Context(), ownerOf(r), chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, err, "Failed to delete archived todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// partialArchiveResponse reports the records that were archived when some
// others could not be.
type partialArchiveResponse struct {
	Error    string                 `json:"error"`
	Archived []service.TodoResponse `json:"archived"`
}

func (s *Server) archiveCompletedHandler(w http.ResponseWriter, r *http.Request) {
	archived, err := s.todoService.ArchiveCompleted(r.Context(), ownerOf(r))
	if err != nil && len(archived) > 0 {
		log.Error("Failed to archive some completed todos", "archived", len(archived), "err", err)
		respondWithJSON(w, http.StatusBadGateway, partialArchiveResponse{
			Error:    "Failed to archive some completed todos",
			Archived: archived,
		})
		return
	}
	if err != nil {
		respondWithServiceError(w, err, "Failed to archive completed todos")
		return
	}
	respondWithJSON(w, http.StatusOK, archived)
}

func (s *Server) unarchiveTodoHandler(w http.ResponseWriter, r *http.Request) {
	todo, err := s.todoService.UnarchiveTodo(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to unarchive todo")
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

// decodeJSONBody decodes a strict JSON body into dst. It writes a 400 and
// returns false when the body is unusable.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	default:
		log.Error("decoding request body", "err", err)
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

// respondWithServiceError maps store error kinds to status codes.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	var (
		validationErr  *domain.ValidationError
		notFoundErr    *domain.NotFoundError
		persistenceErr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, domain.ErrPending), errors.Is(err, domain.ErrOwnerChanged):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &persistenceErr):
		log.Error(fallback, "err", err)
		respondWithError(w, http.StatusBadGateway, fallback)
	default:
		log.Error(fallback, "err", err)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshaling JSON response", "err", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
