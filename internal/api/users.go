package api

import (
	"errors"
	"net/http"

	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/services"
)

// CreateUserHandler handles POST /api/users
func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}

	user, err := a.users.CreateUser(r.Context(), req)
	if err != nil {
		fail(w, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUserHandler handles GET /api/users/{id}
func (a *App) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", nil)
		return
	}

	user, err := a.users.GetUser(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to fetch user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SellerLoginHandler handles POST /api/seller/login. A successful login only
// confirms the credentials; no session is issued.
func (a *App) SellerLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SellerLoginRequest
	if isForm(r) {
		if err := parseForm(r); err != nil {
			fail(w, "Invalid request body", err)
			return
		}
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}

	_, err := a.sellers.Authenticate(r.Context(), req)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"message":   "Invalid email or password.",
			"dashboard": false,
		})
		return
	}
	if err != nil {
		fail(w, "Login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Login successful. Welcome to the dashboard!",
		"dashboard": true,
	})
}
