package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tripparty/internal/app"
	"tripparty/internal/ratelimit"
	"tripparty/internal/usertoken"
	"tripparty/internal/util"
)

const defaultMaxImageBytes = 8 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Tokens *usertoken.Tokens

	RedisAddr              string
	RedisPassword          string
	AuthRateLimitPerMinute int
	AskRateLimitPerMinute  int

	TrustedProxyCIDRs   []string
	MaxImageUploadBytes int64
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	tokens         *usertoken.Tokens
	mux            *http.ServeMux
	authLimiter    *ratelimit.FixedWindowLimiter
	askLimiter     *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	maxImageBytes  int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	authLimit := cfg.AuthRateLimitPerMinute
	if authLimit <= 0 {
		authLimit = 10
	}
	askLimit := cfg.AskRateLimitPerMinute
	if askLimit <= 0 {
		askLimit = 6
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "tripparty:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	authLimiter, err := newLimiter("auth", authLimit)
	if err != nil {
		return nil, err
	}
	askLimiter, err := newLimiter("ask", askLimit)
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	maxImageBytes := cfg.MaxImageUploadBytes
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}

	s := &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		mux:            http.NewServeMux(),
		authLimiter:    authLimiter,
		askLimiter:     askLimiter,
		trustedProxies: trusted,
		maxImageBytes:  maxImageBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("/api/auth/signin", s.handleSignIn)
	s.mux.Handle("/api/users/me", s.withUser(s.handleMe))

	s.mux.Handle("/api/parties", s.withUser(s.handleParties))
	s.mux.Handle("/api/parties/my", s.withUser(s.handleMyParties))
	s.mux.Handle("/api/parties/", s.withUser(s.handlePartyByID))

	s.mux.Handle("/api/messages", s.withUser(s.handleDirectMessages))
	s.mux.Handle("/api/advisor", s.withUser(s.handleAdvisor))

	s.mux.HandleFunc("/api/destinations", s.handleDestinations)
	s.mux.HandleFunc("/api/destinations/", s.handleDestinationByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.tokens.VerifySubject(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, userID)
	})
}

// auth

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.authLimiter) {
		return
	}
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.SignUp(req.Username, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": user})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.authLimiter) {
		return
	}
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.SignIn(req.Username, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.Me(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// parties

type createPartyRequest struct {
	Location         string         `json:"location"`
	Description      string         `json:"description"`
	EstimatedPrice   float64        `json:"estimatedPrice"`
	MaxParticipants  int            `json:"maxParticipants"`
	IsGlobal         bool           `json:"isGlobal"`
	Latitude         *float64       `json:"latitude"`
	Longitude        *float64       `json:"longitude"`
	ImageURL         string         `json:"imageUrl"`
	AdditionalFields map[string]any `json:"additionalFields"`
}

func (s *Server) handleParties(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var req createPartyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		party, err := s.app.CreateParty(userID, app.CreatePartyInput{
			Location:         req.Location,
			Description:      req.Description,
			EstimatedPrice:   req.EstimatedPrice,
			MaxParticipants:  req.MaxParticipants,
			IsGlobal:         req.IsGlobal,
			Latitude:         req.Latitude,
			Longitude:        req.Longitude,
			ImageURL:         req.ImageURL,
			AdditionalFields: req.AdditionalFields,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, party)
	case http.MethodGet:
		in, ok := parseSearchQuery(w, r)
		if !ok {
			return
		}
		parties, err := s.app.SearchParties(in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, parties)
	default:
		methodNotAllowed(w)
	}
}

func parseSearchQuery(w http.ResponseWriter, r *http.Request) (app.SearchPartiesInput, bool) {
	q := r.URL.Query()
	in := app.SearchPartiesInput{
		Location: q.Get("location"),
		Status:   q.Get("status"),
	}
	if v := q.Get("isGlobal"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "isGlobal must be a boolean")
			return in, false
		}
		in.IsGlobal = b
	}
	if v := q.Get("maxPrice"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "maxPrice must be a number")
			return in, false
		}
		in.MaxPrice = &price
	}
	lat, latSet := q.Get("latitude"), q.Has("latitude")
	lng, lngSet := q.Get("longitude"), q.Has("longitude")
	if latSet != lngSet {
		writeError(w, http.StatusBadRequest, "latitude and longitude must be provided together")
		return in, false
	}
	if latSet {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lngF, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			writeError(w, http.StatusBadRequest, "coordinates must be numbers")
			return in, false
		}
		in.Latitude, in.Longitude = &latF, &lngF
	}
	if v := q.Get("maxDistance"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || km <= 0 {
			writeError(w, http.StatusBadRequest, "maxDistance must be a positive number of kilometers")
			return in, false
		}
		in.MaxDistanceKm = km
	}
	return in, true
}

func (s *Server) handleMyParties(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	result, err := s.app.MyParties(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePartyByID dispatches /api/parties/{id}[/join|/messages|/image].
func (s *Server) handlePartyByID(w http.ResponseWriter, r *http.Request, userID string) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/parties/")
	partyID, sub, _ := strings.Cut(rest, "/")
	if partyID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch sub {
	case "":
		s.handleParty(w, r, userID, partyID)
	case "join":
		s.handleJoin(w, r, userID, partyID)
	case "messages":
		s.handlePartyMessages(w, r, userID, partyID)
	case "image":
		s.handlePartyImage(w, r, userID, partyID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleParty(w http.ResponseWriter, r *http.Request, userID, partyID string) {
	switch r.Method {
	case http.MethodGet:
		party, err := s.app.GetParty(partyID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, party)
	case http.MethodPatch:
		var patch map[string]any
		if !decodeJSON(w, r, &patch) {
			return
		}
		party, err := s.app.UpdateParty(partyID, userID, patch)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, party)
	case http.MethodDelete:
		if err := s.app.DeleteParty(r.Context(), partyID, userID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, userID, partyID string) {
	switch r.Method {
	case http.MethodPost:
		party, err := s.app.JoinParty(partyID, userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, party)
	case http.MethodDelete:
		party, err := s.app.LeaveParty(partyID, userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, party)
	default:
		methodNotAllowed(w)
	}
}

type sendMessageRequest struct {
	Content   string `json:"content"`
	Recipient string `json:"recipient"`
}

func (s *Server) handlePartyMessages(w http.ResponseWriter, r *http.Request, userID, partyID string) {
	switch r.Method {
	case http.MethodPost:
		var req sendMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := s.app.SendPartyMessage(partyID, userID, req.Content, req.Recipient)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	case http.MethodGet:
		private := false
		if v := r.URL.Query().Get("private"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "private must be a boolean")
				return
			}
			private = b
		}
		messages, err := s.app.ListPartyMessages(partyID, userID, private, r.URL.Query().Get("recipient"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePartyImage(w http.ResponseWriter, r *http.Request, userID, partyID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "only image uploads are allowed")
		return
	}
	party, err := s.app.SetPartyImage(r.Context(), partyID, userID, file, header.Size, contentType)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// direct messages

type directMessageRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

func (s *Server) handleDirectMessages(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var req directMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := s.app.SendDirectMessage(userID, req.Recipient, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	case http.MethodGet:
		conversations, err := s.app.ListConversations(userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversations)
	default:
		methodNotAllowed(w)
	}
}

// advisor

type askRequest struct {
	Message      string `json:"message"`
	PartyID      string `json:"partyId"`
	HistoryLimit int    `json:"historyLimit"`
}

func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		if !s.allowRate(w, r, s.askLimiter) {
			return
		}
		var req askRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := s.app.AskAdvisor(r.Context(), userID, req.Message, req.PartyID, req.HistoryLimit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		result, err := s.app.AdvisorHistory(r.Context(), userID, r.URL.Query().Get("partyId"), limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		if err := s.app.ClearAdvisorHistory(userID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		methodNotAllowed(w)
	}
}

// destinations

func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		result, err := s.app.ListDestinations(r.URL.Query().Get("q"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodPost:
		// listing is public, adding destinations requires a signed-in user
		s.withUser(s.handleCreateDestination).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateDestination(w http.ResponseWriter, r *http.Request, _ string) {
	var req app.CreateDestinationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	dest, err := s.app.CreateDestination(req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dest)
}

func (s *Server) handleDestinationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/destinations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	dest, err := s.app.GetDestination(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

// helpers

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch app.KindOf(err) {
	case app.KindUnauthorized:
		status = http.StatusUnauthorized
	case app.KindForbidden:
		status = http.StatusForbidden
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindValidation:
		status = http.StatusBadRequest
	case app.KindConflict, app.KindInvalidState:
		status = http.StatusConflict
	case app.KindTimeout:
		status = http.StatusGatewayTimeout
	case app.KindRateLimited:
		status = http.StatusTooManyRequests
	case app.KindService:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, app.MessageOf(err))
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
