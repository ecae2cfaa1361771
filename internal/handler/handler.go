package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/akarpov/ledger-service/internal/httputil"
	"github.com/akarpov/ledger-service/internal/middleware"
	"github.com/akarpov/ledger-service/internal/service"
	"github.com/akarpov/ledger-service/internal/token"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes builds the service router: public register/login/health plus the
// token-protected API subtree.
func (h *Handler) Routes(tokens *token.Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/api/register", h.Register).Methods("POST")
	r.HandleFunc("/api/login", h.Login).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(tokens))
	api.HandleFunc("/user/data", h.UserData).Methods("GET")
	api.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	api.HandleFunc("/transactions/{id}", h.UpdateTransaction).Methods("PUT")
	api.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
	return r
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	UserID  int64  `json:"userId"`
}

type createTransactionRequest struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type createTransactionResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Health is an unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			httputil.WriteError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "Registration successful",
		UserID:  user.ID,
	})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tok, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			httputil.WriteError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			httputil.WriteError(w, http.StatusBadRequest, "Invalid email or password")
		default:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   tok,
		UserID:  user.ID,
	})
}

// UserData returns the caller's account snapshot: user record, derived
// balance and transaction history.
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	snapshot, err := h.svc.Snapshot(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// CreateTransaction records a deposit or withdrawal for the caller.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.svc.CreateTransaction(r.Context(), userID, req.Type, req.Amount)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			httputil.WriteError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createTransactionResponse{
		Message: "Transaction successful",
		ID:      id,
	})
}

// UpdateTransaction amends the amount of one of the caller's transactions.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	txID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "Transaction not found or you do not have permission to edit it.")
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.UpdateTransactionAmount(r.Context(), userID, txID, req.Amount); err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			httputil.WriteError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, service.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Transaction not found or you do not have permission to edit it.")
		default:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Transaction updated successfully"})
}

// DeleteTransaction removes one of the caller's transactions.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	txID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "Transaction not found or you do not have permission to delete it.")
		return
	}

	if err := h.svc.DeleteTransaction(r.Context(), userID, txID); err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			httputil.WriteError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, service.ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Transaction not found or you do not have permission to delete it.")
		default:
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Transaction deleted successfully"})
}
