// Package handler is the thin HTTP layer over contact reconciliation. It
// delegates to the service without embedding business logic so transport
// concerns remain isolated.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"weld/internal/contact/models"
	"weld/internal/platform/middleware"
	"weld/internal/transport/http/shared"
	pkgerrors "weld/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/contact-mocks.go -package=mocks Service

// Service defines the interface for contact reconciliation operations.
type Service interface {
	Resolve(ctx context.Context, email, phone *string) (*models.ClusterView, error)
	Cluster(ctx context.Context, id int64) (*models.ClusterView, error)
}

// Handler handles contact reconciliation endpoints.
type Handler struct {
	logger       *slog.Logger
	contacts     Service
	jwtValidator middleware.JWTValidator
}

// New creates a new contact Handler. jwtValidator may be nil, in which case
// the admin routes are not registered.
func New(contacts Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		contacts:     contacts,
		jwtValidator: jwtValidator,
	}
}

// Register registers the contact routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.handleIdentify)
	if h.jwtValidator != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Get("/contacts/{contactID}/cluster", h.handleCluster)
		})
	}
}

// identifyRequest accepts phoneNumber as either a JSON string or a number;
// numbers are normalized to their string form before matching.
type identifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber any     `json:"phoneNumber"`
}

type contactEnvelope struct {
	Contact clusterResponse `json:"contact"`
}

type clusterResponse struct {
	// The misspelled field name is a published compatibility contract;
	// clients depend on it as-is.
	PrimaryContactID    int64    `json:"primaryContatctId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

func toClusterResponse(view *models.ClusterView) clusterResponse {
	return clusterResponse{
		PrimaryContactID:    view.PrimaryID,
		Emails:              view.Emails,
		PhoneNumbers:        view.PhoneNumbers,
		SecondaryContactIDs: view.SecondaryIDs,
	}
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req identifyRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.writeIdentifyError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}

	phone, err := coercePhone(req.PhoneNumber)
	if err != nil {
		h.writeIdentifyError(w, err)
		return
	}

	view, err := h.contacts.Resolve(ctx, req.Email, phone)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "identify rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "identify failed",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		h.writeIdentifyError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, contactEnvelope{Contact: toClusterResponse(view)})
}

// writeIdentifyError honors the published /identify contract: 400 for
// validation failures, 500 for everything else. Store outages are not
// distinguished here the way other routes do via shared.WriteError.
func (h *Handler) writeIdentifyError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	if pkgerrors.Is(err, pkgerrors.CodeBadRequest) {
		status = http.StatusBadRequest
		message = pkgerrors.MessageOf(err)
	}
	shared.WriteJSON(w, status, shared.ErrorResponse{Error: message})
}

func (h *Handler) handleCluster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "contactID"), 10, 64)
	if err != nil {
		shared.WriteError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "contact id must be an integer"))
		return
	}
	view, err := h.contacts.Cluster(ctx, id)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "cluster lookup failed",
				"request_id", middleware.GetRequestID(ctx),
				"contact_id", id,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, contactEnvelope{Contact: toClusterResponse(view)})
}

// coercePhone normalizes the wire phoneNumber, which may arrive as a JSON
// string or a bare number, into its string form.
func coercePhone(v any) (*string, error) {
	switch phone := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &phone, nil
	case json.Number:
		s := phone.String()
		return &s, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "phoneNumber must be a string or number")
	}
}
