package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"neurolink/internal"
	"neurolink/internal/formstate"
	"neurolink/internal/utils"
	"neurolink/pkg/types"
)

// loadDraft returns the caller's current draft, starting a new one when the
// cookie is missing, stale or belongs to somebody else.
func (s *Service) loadDraft(w http.ResponseWriter, r *http.Request, identity types.Identity) (*types.Draft, error) {
	ctx := r.Context()

	if c, err := r.Cookie(internal.COOKIE_DRAFT_NAME); err == nil {
		var draftID string
		if err := s.cookie.Decode(internal.COOKIE_DRAFT_NAME, c.Value, &draftID); err == nil && draftID != "" {
			draft, err := s.drafts.Draft(ctx, draftID)
			switch {
			case err == nil && draft.UserID == identity.UserID:
				return draft, nil
			case err != nil && !errors.Is(err, types.ErrDraftNotFound):
				return nil, fmt.Errorf("load draft %s: %w", draftID, err)
			}
		}
	}

	draft := &types.Draft{ID: utils.NanoID(), UserID: identity.UserID}
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	if err := s.setDraftCookie(w, draft.ID); err != nil {
		return nil, err
	}

	s.logger.WithField("draft_id", draft.ID).Debug("started new intake draft")

	return draft, nil
}

func (s *Service) saveDraft(ctx context.Context, draft *types.Draft, st *formstate.Store) error {
	draft.State = st.Get()
	return s.drafts.SaveDraft(ctx, draft)
}

// newStore builds the form state store for one request, seeded from draft.
func (s *Service) newStore(ctx context.Context, draft *types.Draft) *formstate.Store {
	opts := []formstate.Option{
		formstate.WithState(draft.State),
		formstate.WithPolicy(s.policy),
		formstate.WithContext(ctx),
	}

	if draft.State.RegionID != "" {
		opts = append(opts, formstate.WithCities(s.locations.FetchCities(ctx, draft.State.RegionID)))
	}

	st := formstate.New(s.locations, s.logger.WithField("draft_id", draft.ID), opts...)
	st.LoadRegions(ctx)

	return st
}

func (s *Service) setDraftCookie(w http.ResponseWriter, draftID string) error {
	encoded, err := s.cookie.Encode(internal.COOKIE_DRAFT_NAME, draftID)
	if err != nil {
		return fmt.Errorf("encode draft cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     internal.COOKIE_DRAFT_NAME,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(s.config.DraftTTLHours) * 3600,
	})

	return nil
}

func (s *Service) clearDraftCookie(w http.ResponseWriter) {
	s.expireCookie(w, internal.COOKIE_DRAFT_NAME)
}

// discardStaged removes staged uploads the draft no longer references.
func (s *Service) discardStaged(ctx context.Context, attachments ...*types.Attachment) {
	for _, a := range attachments {
		if a == nil || a.URI == "" {
			continue
		}
		if err := s.stager.Remove(ctx, a.URI); err != nil {
			s.logger.WithError(err).WithField("uri", a.URI).Warn("failed to remove staged upload")
		}
	}
}
