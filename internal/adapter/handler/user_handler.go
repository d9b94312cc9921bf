package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopworks/fulfillment/internal/auth"
	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/core/service"
)

type UserHandler struct {
	userService *service.UserService
	tokens      *auth.Manager
}

type UserHTTPRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type UserHTTPResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginHTTPRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenHTTPResponse struct {
	Token string `json:"token"`
}

func NewUserHandler(userService *service.UserService, tokens *auth.Manager) *UserHandler {
	return &UserHandler{userService: userService, tokens: tokens}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are mandatory")
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UserHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are mandatory")
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), r.PathValue("id"), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not update user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.userService.DeleteUser(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, TokenHTTPResponse{Token: token})
}

func (h *UserHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toUserResponse(u domain.User) UserHTTPResponse {
	return UserHTTPResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}
