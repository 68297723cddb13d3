package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/pkg/logger"
)

const (
	prefICAO          = "icao"
	prefHeadingRange  = "headingRange"
	prefDistanceRange = "distanceRange"
)

// Preferences is the remembered dashboard state. Unset or expired values
// are null.
type Preferences struct {
	ICAO          *string        `json:"icao"`
	HeadingRange  *inbound.Range `json:"headingRange"`
	DistanceRange *inbound.Range `json:"distanceRange"`
}

// GetPreferences returns the remembered search and filter values
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.loadPreferences(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// PutPreferences stores the values present in the body. The airport is kept
// for the search expiry, the ranges for the filter expiry.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req Preferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, invalidInput("invalid request body"))
		return
	}

	if req.ICAO != nil {
		icao := normalizeICAO(*req.ICAO)
		if !config.ValidICAO(icao) {
			h.writeError(w, r, invalidInput("ICAO code must be four letters: %q", icao))
			return
		}
		req.ICAO = &icao
	}
	opts := inbound.FilterOptions{HeadingRange: req.HeadingRange, DistanceRange: req.DistanceRange}
	if err := opts.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if req.ICAO != nil {
		if err := h.savePreference(ctx, prefICAO, *req.ICAO, h.searchTTL()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if req.HeadingRange != nil {
		if err := h.savePreference(ctx, prefHeadingRange, req.HeadingRange, h.filterTTL()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if req.DistanceRange != nil {
		if err := h.savePreference(ctx, prefDistanceRange, req.DistanceRange, h.filterTTL()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	prefs, err := h.loadPreferences(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) searchTTL() time.Duration {
	return time.Duration(h.config.Preferences.SearchDays) * 24 * time.Hour
}

func (h *Handler) filterTTL() time.Duration {
	return time.Duration(h.config.Preferences.FilterDays) * 24 * time.Hour
}

func (h *Handler) savePreference(ctx context.Context, name string, value any, ttl time.Duration) error {
	if h.prefs == nil {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode preference %s: %w", name, err)
	}
	return h.prefs.SetPreference(ctx, name, string(encoded), ttl)
}

func (h *Handler) loadPreferences(ctx context.Context) (Preferences, error) {
	var prefs Preferences
	if h.prefs == nil {
		return prefs, nil
	}
	if err := h.loadPreference(ctx, prefICAO, &prefs.ICAO); err != nil {
		return prefs, err
	}
	if err := h.loadPreference(ctx, prefHeadingRange, &prefs.HeadingRange); err != nil {
		return prefs, err
	}
	if err := h.loadPreference(ctx, prefDistanceRange, &prefs.DistanceRange); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// loadPreference decodes a stored value into out. Undecodable values are
// logged and treated as unset.
func (h *Handler) loadPreference(ctx context.Context, name string, out any) error {
	record, err := h.prefs.GetPreference(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load preference %s: %w", name, err)
	}
	if record == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(record.Value), out); err != nil {
		h.logger.Warn("Ignoring unreadable preference", logger.String("name", name), logger.Error(err))
	}
	return nil
}
