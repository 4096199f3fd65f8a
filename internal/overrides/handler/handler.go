package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idmask/internal/commands"
	"idmask/internal/identity/models"
	"idmask/internal/overrides/service"
	dErrors "idmask/pkg/domain-errors"
	"idmask/pkg/platform/httputil"
	"idmask/pkg/requestcontext"
)

// Service is the overrides service as seen by HTTP.
type Service interface {
	Snapshot(ctx context.Context) (models.Snapshot, error)
	SetAttribute(ctx context.Context, key, value string) (models.Snapshot, error)
	Replace(ctx context.Context, snap models.Snapshot) error
	Regenerate(ctx context.Context) (models.Snapshot, error)
	Status(ctx context.Context) (service.Status, error)
	VerifyStored(ctx context.Context) (models.VerificationReport, error)
	Current(ctx context.Context) []models.Observation
}

// CommandReceiver runs trigger commands.
type CommandReceiver interface {
	Handle(ctx context.Context, cmd commands.Command) commands.Result
}

// ScriptExporter writes the helper script and returns its path.
type ScriptExporter interface {
	Export(ctx context.Context) (string, error)
}

// Handler serves the front-end contract.
type Handler struct {
	service  Service
	commands CommandReceiver
	exporter ScriptExporter
	logger   *slog.Logger
}

func New(svc Service, cmds CommandReceiver, exporter ScriptExporter, logger *slog.Logger) *Handler {
	return &Handler{
		service:  svc,
		commands: cmds,
		exporter: exporter,
		logger:   logger,
	}
}

// Register mounts the read-only routes. Mount RegisterAdmin behind the admin
// token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/v1/config", h.HandleGetConfig)
	r.Get("/api/v1/verification", h.HandleVerification)
	r.Get("/api/v1/device/current", h.HandleCurrentDevice)
}

// RegisterAdmin mounts the mutating routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/api/v1/config", h.HandleReplaceConfig)
	r.Put("/api/v1/config/{key}", h.HandleSetAttribute)
	r.Post("/api/v1/config/regenerate", h.HandleRegenerate)
	r.Post("/api/v1/commands/spoof-device", h.HandleSpoofDevice)
	r.Post("/api/v1/script/export", h.HandleExportScript)
}

// HandleGetConfig handles GET /api/v1/config.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load configuration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleSetAttribute handles PUT /api/v1/config/{key}.
func (h *Handler) HandleSetAttribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SetAttributeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	snap, err := h.service.SetAttribute(ctx, chi.URLParam(r, "key"), *req.Value)
	if err != nil {
		h.fail(w, r, "failed to set attribute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleReplaceConfig handles PUT /api/v1/config. Unknown attribute names
// are rejected before anything is stored.
func (h *Handler) HandleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ReplaceConfigRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	snap, err := req.Snapshot()
	if err != nil {
		h.fail(w, r, "invalid configuration", err)
		return
	}
	if err := h.service.Replace(ctx, snap); err != nil {
		h.fail(w, r, "failed to replace configuration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleRegenerate handles POST /api/v1/config/regenerate.
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Regenerate(r.Context())
	if err != nil {
		h.fail(w, r, "failed to regenerate configuration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleVerification handles GET /api/v1/verification. With ?against=stored
// the stored snapshot is checked instead of the one installed at startup.
func (h *Handler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("against") {
	case "", "installed":
	case "stored":
		report, err := h.service.VerifyStored(r.Context())
		if err != nil {
			h.fail(w, r, "failed to verify configuration", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, VerificationResponse{Report: report})
		return
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "against must be installed or stored"))
		return
	}

	status, err := h.service.Status(r.Context())
	if err != nil {
		h.fail(w, r, "failed to verify configuration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerificationResponse{
		Report:          status.Report,
		RestartRequired: status.RestartRequired,
	})
}

// HandleCurrentDevice handles GET /api/v1/device/current.
func (h *Handler) HandleCurrentDevice(w http.ResponseWriter, r *http.Request) {
	obs := h.service.Current(r.Context())
	if obs == nil {
		obs = []models.Observation{}
	}
	httputil.WriteJSON(w, http.StatusOK, CurrentDeviceResponse{Attributes: obs})
}

// HandleSpoofDevice handles POST /api/v1/commands/spoof-device. A failed
// command answers 502 with the result body.
func (h *Handler) HandleSpoofDevice(w http.ResponseWriter, r *http.Request) {
	res := h.commands.Handle(r.Context(), commands.Command{Action: commands.ActionSpoofDevice})
	status := http.StatusOK
	if res.Code != commands.ResultOK {
		status = http.StatusBadGateway
	}
	httputil.WriteJSON(w, status, res)
}

// HandleExportScript handles POST /api/v1/script/export.
func (h *Handler) HandleExportScript(w http.ResponseWriter, r *http.Request) {
	path, err := h.exporter.Export(r.Context())
	if err != nil {
		h.fail(w, r, "failed to export script", dErrors.Wrap(err, dErrors.CodeInternal, "script export failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExportResponse{Path: path})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
