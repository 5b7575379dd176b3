package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
	"olekmabot/internal/models"
	"olekmabot/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	initDataMaxAge   = 24 * time.Hour
)

// HTTPServer exposes the webhook intake and the moderator queue API
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
}

// NewHTTPServer creates a new HTTP server for the bot
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
	}
}

// RegisterRoutes registers the bot's routes on the provided router
func (hs *HTTPServer) RegisterRoutes(r chi.Router) {
	r.Post("/telegram-webhook", hs.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(hs.authMiddleware)
		r.Get("/submissions", hs.handleListSubmissions)
		r.Get("/submissions/{id}", hs.handleGetSubmission)
		r.Get("/stats", hs.handleStats)
	})
}

// handleWebhook queues an update and answers Telegram right away
func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		hs.bot.logger.Warn("Error decoding webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := hs.bot.Enqueue(r.Context(), update); err != nil {
		hs.bot.logger.Error("Failed to queue webhook update", zap.Error(err), zap.Int("update_id", update.UpdateID))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// validateTelegramInitData validates the Telegram Mini App initData and returns the moderator's user id
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	// Parse the initData
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	// Extract hash
	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}

	// Remove hash from values
	values.Del("hash")

	// Create data-check-string
	var keys []string
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	// Verify hash
	if !hmac.Equal([]byte(signInitData(hs.bot.token, dataCheckString.String())), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	// Data should be recent
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing auth_date")
	}
	if hs.bot.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	// Extract user ID
	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}

	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}

	if !hs.bot.isModerator(userData.ID) {
		return 0, fmt.Errorf("user is not a moderator")
	}

	return userData.ID, nil
}

// signInitData computes the Mini App hash of a data-check-string
func signInitData(token, dataCheckString string) string {
	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(token))
	secret := secretKey.Sum(nil)

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString))
	return hex.EncodeToString(h.Sum(nil))
}

// authMiddleware validates Telegram Mini App authentication
// In polling mode (webhookMode=false), authentication is skipped for easier local development
func (hs *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication in polling mode (local development)
		if !hs.webhookMode {
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
			return
		}

		// Extract authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)

		next.ServeHTTP(w, r)
	})
}

// submissionView is the JSON shape of a queued submission
type submissionView struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	Type        string              `json:"type,omitempty"`
	Label       string              `json:"label"`
	Title       string              `json:"title"`
	Fields      []models.FieldValue `json:"fields"`
	Submitter   models.Submitter    `json:"submitter"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

func (hs *HTTPServer) view(sub *models.Submission) submissionView {
	return submissionView{
		ID:          sub.ID,
		Kind:        sub.Kind,
		Type:        sub.TypeTag,
		Label:       hs.bot.catalog.TypeLabel(flow.Kind(sub.Kind), sub.TypeTag),
		Title:       submissionTitle(sub),
		Fields:      sub.Fields,
		Submitter:   sub.Submitter,
		SubmittedAt: sub.SubmittedAt,
	}
}

// handleListSubmissions returns the open submissions, oldest first
func (hs *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	subs, err := hs.bot.db.ListPending(r.Context(), limit)
	if err != nil {
		hs.bot.logger.Error("Failed to list submissions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch submissions")
		return
	}

	views := make([]submissionView, 0, len(subs))
	for i := range subs {
		views = append(views, hs.view(&subs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetSubmission returns a single open submission
func (hs *HTTPServer) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := hs.bot.db.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		hs.bot.logger.Error("Failed to get submission", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch submission")
		return
	}
	writeJSON(w, http.StatusOK, hs.view(sub))
}

// handleStats returns the queue size and recent decision counts
func (hs *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	pending, err := hs.bot.db.CountPending(r.Context())
	if err != nil {
		hs.bot.logger.Error("Failed to count submissions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	stats, err := hs.bot.db.GetDecisionStats(r.Context(), hs.bot.now().Add(-statsWindow))
	if err != nil {
		hs.bot.logger.Error("Failed to get decision stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	decisions := make(map[models.DecisionAction]int, len(stats))
	for _, s := range stats {
		decisions[s.Action] = s.Count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   pending,
		"decisions": decisions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
