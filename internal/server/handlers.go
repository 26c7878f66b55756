package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/internal/logging"
	authmw "github.com/MrEthical07/pairAuth/middleware"
)

const maxBodyBytes = 1 << 20

// Handlers holds what the endpoints need.
type Handlers struct {
	engine   *pairAuth.Engine
	validate *requestValidator
	ready    func(context.Context) error
}

func NewHandlers(engine *pairAuth.Engine, ready func(context.Context) error) *Handlers {
	return &Handlers{
		engine:   engine,
		validate: newRequestValidator(),
		ready:    ready,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=10,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type updateMeRequest struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=100"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

// authEnvelope also carries the access token for clients that send it as a Bearer header.
// The refresh token is only ever set as a cookie.
type authEnvelope struct {
	User                 userResponse `json:"user"`
	AccessToken          string       `json:"accessToken"`
	AccessTokenExpiresAt time.Time    `json:"accessTokenExpiresAt"`
}

func toUserResponse(u pairAuth.UserRecord) userResponse {
	return userResponse{
		ID:        u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// decodeStrict rejects unknown fields, trailing data and bodies over maxBodyBytes.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

// bind decodes and validates the body, answering 400 itself on failure.
func (h *Handlers) bind(w http.ResponseWriter, r *http.Request, value any) bool {
	if err := decodeStrict(w, r, value); err != nil {
		msg := msgInvalidBody
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	if msg := h.validate.Check(value); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !h.bind(w, r, &in) {
		return
	}

	res, err := h.engine.Register(r.Context(), pairAuth.RegisterInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.writeSession(w, res)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !h.bind(w, r, &in) {
		return
	}

	res, err := h.engine.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.writeSession(w, res)
}

func (h *Handlers) writeSession(w http.ResponseWriter, res pairAuth.AccountResult) {
	authmw.SetPairCookies(w, h.engine.CookiePolicy(), res.Tokens)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, authEnvelope{
		User:                 toUserResponse(res.User),
		AccessToken:          res.Tokens.AccessToken,
		AccessTokenExpiresAt: res.Tokens.AccessExpiresAt,
	})
}

// Logout clears both cookies. It always succeeds: tokens stay valid until they expire, so
// there is nothing to revoke. A recognizable caller is recorded for audit.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	policy := h.engine.CookiePolicy()

	creds := authmw.Credentials(r, policy)
	if creds != (pairAuth.Credentials{}) {
		if res := h.engine.Authenticate(r.Context(), creds); res.Admitted() {
			h.engine.Logout(r.Context(), res.Principal)
		}
	}

	authmw.ClearAuthCookies(w, policy)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.Profile(r.Context(), authmw.UserID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in updateMeRequest
	if !h.bind(w, r, &in) {
		return
	}

	user, err := h.engine.UpdateProfile(r.Context(), authmw.UserID(r), in.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logging.From(r.Context()).WarnContext(r.Context(), "health_check_failed",
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}
