package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/websitelelo/websitelelo/internal/models"
	"github.com/websitelelo/websitelelo/internal/repository"
)

// LeadNotifier is told about every accepted contact submission.
type LeadNotifier interface {
	LeadCreated(ctx context.Context, lead *models.Lead) error
}

type ContactHandler struct {
	Leads    Store[models.Lead]
	Notifier LeadNotifier
}

// Fields a visitor may set on a lead.
var contactFields = []string{"name", "email", "phone", "message"}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	fields := make(map[string]json.RawMessage, len(contactFields))
	for _, k := range contactFields {
		if v, ok := body[k]; ok {
			fields[k] = v
		}
	}

	lead, err := h.Leads.Create(r.Context(), fields)
	if err != nil {
		if errors.Is(err, repository.ErrValidation) {
			writeStoreError(w, r, "Lead", err)
			return
		}
		slog.Error("Failed to store contact submission", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Could not send your message, please try again")
		return
	}

	slog.Info("Contact submission received", "id", lead.ID)
	h.notify(r.Context(), lead)
	writeJSON(w, http.StatusCreated, lead)
}

func (h *ContactHandler) notify(ctx context.Context, lead *models.Lead) {
	if h.Notifier == nil {
		return
	}
	copied := *lead
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := h.Notifier.LeadCreated(ctx, &copied); err != nil {
			slog.Warn("Lead notification failed", "id", copied.ID, "error", err)
		}
	}()
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Leads.List(r.Context(), repository.ListOptions{})
	if err != nil {
		writeStoreError(w, r, "Lead", err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes only the status of a lead.
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}
	status, err := json.Marshal(req.Status)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}

	lead, err := h.Leads.Update(r.Context(), r.PathValue("id"), map[string]json.RawMessage{"status": status})
	if err != nil {
		writeStoreError(w, r, "Lead", err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Leads.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, "Lead", err)
		return
	}
	writeMessage(w, http.StatusOK, "Lead removed")
}
