package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/database"
	"github.com/quickshelf/api/internal/httputil"
	"github.com/quickshelf/api/internal/logging"
)

// Handler exposes the admin settings surface. Every route behind it is
// admin-gated by the router.
type Handler struct {
	repo   *Repository
	cache  *config.Cache
	logger *logging.Logger
}

func NewHandler(repo *Repository, cache *config.Cache, logger *logging.Logger) *Handler {
	return &Handler{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// SettingsResponse is the admin view of the persisted settings. Secrets are
// reported as configured/not-configured, never echoed back.
type SettingsResponse struct {
	SiteName             string `json:"site_name"`
	FrontendURL          string `json:"frontend_url"`
	SupportEmail         string `json:"support_email"`
	SigningKeyConfigured bool   `json:"signing_key_configured"`
	SMTPHost             string `json:"smtp_host"`
	SMTPPort             string `json:"smtp_port"`
	SMTPUser             string `json:"smtp_user"`
	SMTPConfigured       bool   `json:"smtp_configured"`
}

// UpdateSettingsRequest carries a partial update; nil fields keep their
// current value.
type UpdateSettingsRequest struct {
	SiteName        *string `json:"site_name"`
	FrontendURL     *string `json:"frontend_url"`
	SupportEmail    *string `json:"support_email"`
	TokenSigningKey *string `json:"token_signing_key"`
	SMTPHost        *string `json:"smtp_host"`
	SMTPPort        *string `json:"smtp_port"`
	SMTPUser        *string `json:"smtp_user"`
	SMTPPassword    *string `json:"smtp_password"`
}

// Get returns the persisted settings
// @Summary      Read persisted settings
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} SettingsResponse
// @Failure      403 {object} httputil.ErrorResponse "Forbidden"
// @Router       /admin/settings [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	record, err := h.repo.GetRecord(r.Context())
	if err != nil {
		if errors.Is(err, config.ErrSettingsNotFound) {
			httputil.RespondJSON(w, maskSettings(&database.Setting{}), http.StatusOK)
			return
		}
		logger.Error("failed to read settings", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to read settings", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, maskSettings(record), http.StatusOK)
}

// Update applies a partial settings update and reloads the config cache
// @Summary      Update persisted settings
// @Description  Apply a partial settings update; the effective configuration is reloaded atomically.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateSettingsRequest true "Fields to update"
// @Success      200 {object} SettingsResponse
// @Failure      403 {object} httputil.ErrorResponse "Forbidden"
// @Router       /admin/settings [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid settings update body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	record, err := h.repo.GetRecord(r.Context())
	if err != nil {
		if !errors.Is(err, config.ErrSettingsNotFound) {
			logger.Error("failed to read settings", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to read settings", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}
		record = &database.Setting{}
	}

	applyPatch(record, &req)

	if err := h.repo.Upsert(r.Context(), record); err != nil {
		logger.Error("failed to save settings", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to save settings", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// Publish the new effective configuration in one swap.
	h.cache.Reload(r.Context())

	logger.Info("settings updated, configuration reloaded")

	httputil.RespondJSON(w, maskSettings(record), http.StatusOK)
}

// Reload re-reads the persisted settings into the config cache
// @Summary      Reload effective configuration
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string
// @Failure      403 {object} httputil.ErrorResponse "Forbidden"
// @Router       /admin/settings/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	h.cache.Reload(r.Context())

	logger.Info("configuration reloaded")

	httputil.RespondJSON(w, map[string]string{"message": "configuration reloaded"}, http.StatusOK)
}

func applyPatch(record *database.Setting, req *UpdateSettingsRequest) {
	if req.SiteName != nil {
		record.SiteName = *req.SiteName
	}
	if req.FrontendURL != nil {
		record.FrontendURL = *req.FrontendURL
	}
	if req.SupportEmail != nil {
		record.SupportEmail = *req.SupportEmail
	}
	if req.TokenSigningKey != nil {
		record.TokenSigningKey = *req.TokenSigningKey
	}
	if req.SMTPHost != nil {
		record.SMTPHost = *req.SMTPHost
	}
	if req.SMTPPort != nil {
		record.SMTPPort = *req.SMTPPort
	}
	if req.SMTPUser != nil {
		record.SMTPUser = *req.SMTPUser
	}
	if req.SMTPPassword != nil {
		record.SMTPPassword = *req.SMTPPassword
	}
}

func maskSettings(record *database.Setting) SettingsResponse {
	return SettingsResponse{
		SiteName:             record.SiteName,
		FrontendURL:          record.FrontendURL,
		SupportEmail:         record.SupportEmail,
		SigningKeyConfigured: record.TokenSigningKey != "",
		SMTPHost:             record.SMTPHost,
		SMTPPort:             record.SMTPPort,
		SMTPUser:             record.SMTPUser,
		SMTPConfigured:       record.SMTPHost != "" && record.SMTPUser != "",
	}
}
