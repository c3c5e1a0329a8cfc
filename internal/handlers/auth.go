package handlers

import (
	"net/http"
	"strconv"

	"github.com/AnshRaj112/buildlog-backend/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

type resendOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := bindJSON(r, &req, "All fields are required"); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.auth.Signup(r.Context(), services.SignupInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{
		"message": "Signup successful. Please check your email for the OTP.",
		"userId":  id.Hex(),
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := bindJSON(r, &req, "Email and OTP are required"); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.VerifyOTP(r.Context(), req.Email, req.OTP, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"message": "Email verified successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := bindJSON(r, &req, "Email is required"); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ResendOTP(r.Context(), req.Email, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "OTP resent successfully"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bindJSON(r, &req, "Email/Username and password are required"); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.EmailOrUsername, req.Password, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"token": res.Token, "user": res.User})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.Me(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": u})
}

// Activity lists the caller's recent sign-in events; ?limit= caps the count.
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.auth.Activity(r.Context(), caller(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"events": events})
}
