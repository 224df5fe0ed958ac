package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"neurolink/internal/formstate"
	"neurolink/internal/media"
	"neurolink/internal/submit"
	"neurolink/internal/utils"
	"neurolink/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	fieldRegion = "regionId"
	fieldCity   = "cityId"

	// Extra room over the largest upload for the rest of the form.
	maxIntakeBody     = media.MaxVideoBytes + 1<<20
	maxMultipartInMem = 32 << 20
)

// intakeFields lists every form-addressable field in a stable order.
var intakeFields = func() []string {
	paths := utils.TagPaths(types.FormState{}, "form")
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}()

func (s *Service) handleGetIntake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := s.identityFromContext(ctx)
	if err != nil {
		s.redirectToLogin(w, r)
		return
	}

	draft, err := s.loadDraft(w, r, identity)
	if err != nil {
		s.logger.WithError(err).Error("failed to load intake draft")
		s.internalServerError(w)
		return
	}

	st := s.newStore(ctx, draft)
	data := s.buildIntakePage(st)
	data.Notice = r.URL.Query().Get("notice")

	if err := s.renderTemplate(w, r, "page.intake", data); err != nil {
		s.logger.WithError(err).Error("failed to render intake page")
		s.internalServerError(w)
		return
	}
}

// handlePostIntake saves the draft.
func (s *Service) handlePostIntake(w http.ResponseWriter, r *http.Request) {
	s.withIntake(w, r, func(ctx context.Context, draft *types.Draft, st *formstate.Store) {
		s.redirectToIntake(w, r, "Draft saved.")
	})
}

// handlePostIntakeRegion applies a region change and reloads the form with
// the new city list.
func (s *Service) handlePostIntakeRegion(w http.ResponseWriter, r *http.Request) {
	s.withIntake(w, r, func(ctx context.Context, draft *types.Draft, st *formstate.Store) {
		s.redirectToIntake(w, r, "")
	})
}

func (s *Service) handlePostIntakeMedia(w http.ResponseWriter, r *http.Request) {
	kind, err := media.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.withIntake(w, r, func(ctx context.Context, draft *types.Draft, st *formstate.Store) {
		attachment, err := s.stageUpload(ctx, r, draft, kind)
		if err != nil {
			var constraintErr *media.ConstraintError
			if errors.As(err, &constraintErr) {
				data := s.buildIntakePage(st)
				setMediaError(data, kind, constraintErr.Message)
				s.renderIntake(w, r, http.StatusUnprocessableEntity, data)
				return
			}
			s.logger.WithError(err).WithField("kind", kind).Error("failed to stage upload")
			data := s.buildIntakePage(st)
			setMediaError(data, kind, submit.GenericUploadMessage)
			s.renderIntake(w, r, http.StatusInternalServerError, data)
			return
		}

		previous := currentAttachment(st.Get(), kind)

		if err := st.SetAttachment(kind, attachment); err != nil {
			s.logger.WithError(err).Error("failed to set attachment")
			s.discardStaged(ctx, attachment)
			s.internalServerError(w)
			return
		}

		if err := s.saveDraft(ctx, draft, st); err != nil {
			s.logger.WithError(err).Error("failed to save intake draft")
			s.internalServerError(w)
			return
		}

		s.discardStaged(ctx, previous)

		s.logger.WithFields(logrus.Fields{
			"draft_id":  draft.ID,
			"kind":      kind,
			"mime_type": attachment.MimeType,
			"size":      attachment.SizeBytes,
		}).Info("attachment staged")

		s.redirectToIntake(w, r, fmt.Sprintf("%s attached.", mediaField(kind, nil).Label))
	})
}

func (s *Service) handlePostIntakeMediaDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := media.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	s.withIntake(w, r, func(ctx context.Context, draft *types.Draft, st *formstate.Store) {
		previous := currentAttachment(st.Get(), kind)
		if previous == nil {
			s.redirectToIntake(w, r, "")
			return
		}

		if err := st.SetAttachment(kind, nil); err != nil {
			s.logger.WithError(err).Error("failed to clear attachment")
			s.internalServerError(w)
			return
		}

		if err := s.saveDraft(ctx, draft, st); err != nil {
			s.logger.WithError(err).Error("failed to save intake draft")
			s.internalServerError(w)
			return
		}

		s.discardStaged(ctx, previous)
		s.redirectToIntake(w, r, fmt.Sprintf("%s removed.", mediaField(kind, nil).Label))
	})
}

func (s *Service) handlePostIntakeSubmit(w http.ResponseWriter, r *http.Request) {
	s.withIntake(w, r, func(ctx context.Context, draft *types.Draft, st *formstate.Store) {
		if !s.acquire(draft.ID) {
			data := s.buildIntakePage(st)
			data.Submitting = true
			data.Errors = []string{submit.UserMessage(submit.ErrSubmissionInProgress)}
			s.renderIntake(w, r, http.StatusConflict, data)
			return
		}
		defer s.release(draft.ID)

		submitted := st.Get()
		logger := s.logger.WithField("draft_id", draft.ID)

		pipeline := submit.NewPipeline(st, s.backend, s.variant, logger)
		outcome, err := pipeline.Submit(ctx)
		if err != nil {
			status := http.StatusBadGateway
			var validationErr *submit.ValidationError
			if errors.As(err, &validationErr) {
				status = http.StatusUnprocessableEntity
			} else {
				logger.WithError(err).Warn("intake submission failed")
			}

			data := s.buildIntakePage(st)
			if outcome != nil {
				data.Errors = outcome.Messages
			} else {
				data.Errors = []string{submit.UserMessage(err)}
			}
			s.renderIntake(w, r, status, data)
			return
		}

		s.discardStaged(ctx, submitted.MRIPhoto, submitted.SeizureVideo)

		if err := s.drafts.DeleteDraft(ctx, draft.ID); err != nil {
			logger.WithError(err).Warn("failed to delete submitted draft")
		}
		s.clearDraftCookie(w)

		if outcome.Result == nil || outcome.Result.FormID == "" {
			s.redirectToIntake(w, r, "Form submitted.")
			return
		}

		http.Redirect(w, r, "/intake/submitted/"+url.PathEscape(outcome.Result.FormID), http.StatusSeeOther)
	})
}

func (s *Service) handleGetIntakeSubmitted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formID := r.PathValue("formID")

	data := &types.IntakeSubmittedPageData{
		BasePageData: types.BasePageData{Title: "Form submitted"},
		FormID:       formID,
		Message:      "The referral was sent to the neurology team.",
	}

	hasResponse, err := s.backend.HasResponse(ctx, formID)
	if err != nil {
		s.logger.WithError(err).WithField("form_id", formID).Warn("failed to check form response")
	}
	data.HasResponse = hasResponse

	if err := s.renderTemplate(w, r, "page.intake.submitted", data); err != nil {
		s.logger.WithError(err).Error("failed to render submitted page")
		s.internalServerError(w)
		return
	}
}

// withIntake parses the posted form, applies it to the caller's draft and
// saves it before handing over to next. Field errors re-render the form.
func (s *Service) withIntake(w http.ResponseWriter, r *http.Request, next func(ctx context.Context, draft *types.Draft, st *formstate.Store)) {
	ctx := r.Context()

	identity, err := s.identityFromContext(ctx)
	if err != nil {
		s.redirectToLogin(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBody)
	if err := parseIntakeForm(r); err != nil {
		s.logger.WithError(err).Warn("failed to parse intake form")
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	draft, err := s.loadDraft(w, r, identity)
	if err != nil {
		s.logger.WithError(err).Error("failed to load intake draft")
		s.internalServerError(w)
		return
	}

	st := s.newStore(ctx, draft)
	problems, err := applyForm(ctx, st, r.PostForm)
	if err != nil {
		s.logger.WithError(err).Error("failed to apply intake form")
		s.internalServerError(w)
		return
	}

	if err := s.saveDraft(ctx, draft, st); err != nil {
		s.logger.WithError(err).Error("failed to save intake draft")
		s.internalServerError(w)
		return
	}

	if len(problems) > 0 {
		data := s.buildIntakePage(st)
		data.Errors = problems
		s.renderIntake(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	next(ctx, draft, st)
}

func parseIntakeForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxMultipartInMem)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// applyForm copies posted values into st. A changed region is applied first
// and its city list awaited; the posted city then belongs to the old region
// and is skipped. Absent fields are cleared, which is how unchecked boxes
// arrive. The returned messages are field problems for the user.
func applyForm(ctx context.Context, st *formstate.Store, values url.Values) ([]string, error) {
	var problems []string

	region := strings.TrimSpace(values.Get(fieldRegion))
	regionChanged := region != st.Get().RegionID
	if regionChanged {
		if fetch := st.SetRegion(ctx, region); fetch != nil {
			if err := fetch.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for cities of region %s: %w", region, err)
			}
		}
	}

	for _, name := range intakeFields {
		if name == fieldRegion || (name == fieldCity && regionChanged) {
			continue
		}

		if err := st.SetField(name, values.Get(name)); err != nil {
			switch {
			case errors.Is(err, formstate.ErrCityNeedsRegion):
				problems = append(problems, "Select a region before choosing a city.")
			case errors.Is(err, formstate.ErrInvalidValue):
				problems = append(problems, fmt.Sprintf("Invalid value for %s.", name))
			default:
				return nil, err
			}
		}
	}

	return problems, nil
}

// stageUpload checks the posted file for kind and stages it under the
// draft. The returned attachment points at the staged copy.
func (s *Service) stageUpload(ctx context.Context, r *http.Request, draft *types.Draft, kind media.Kind) (*types.Attachment, error) {
	file, header, err := r.FormFile(kind.FieldName())
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, &media.ConstraintError{Kind: kind, Message: "Choose a file to upload."}
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	mimeType, err := media.Sniff(file)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = header.Header.Get("Content-Type")
	}

	sel := media.SelectedMedia{
		URI:       "upload:" + header.Filename,
		MimeType:  mimeType,
		FileName:  header.Filename,
		SizeBytes: header.Size,
	}
	if kind == media.KindVideo {
		if d, err := strconv.ParseFloat(r.PostFormValue("videoDuration"), 64); err == nil {
			sel.Duration = d
		}
	}

	var attachment *types.Attachment
	if err := media.HandlePick(&sel, kind, func(a *types.Attachment) { attachment = a }); err != nil {
		return nil, err
	}

	uri, err := s.stager.Stage(ctx, draft.ID+"/"+string(kind), attachment.FileName, attachment.MimeType, file)
	if err != nil {
		return nil, err
	}
	attachment.URI = uri

	return attachment, nil
}

func (s *Service) buildIntakePage(st *formstate.Store) *types.IntakePageData {
	snap := st.Snapshot()

	return &types.IntakePageData{
		BasePageData: types.BasePageData{Title: "Epilepsy referral"},
		Form:         snap.State,
		Regions:      regionOptions(snap.Regions, snap.State.RegionID),
		Cities:       cityOptions(snap.Cities, snap.State.CityID),
		Occurrences:  occurrenceOptions(snap.State.SeizureOccurrence),
		SeizureType:  seizureTypeOptions(snap.State.SeizureType),
		Symptoms:     symptomFields(snap.State.Symptoms),
		Image:        mediaField(media.KindImage, snap.State.MRIPhoto),
		Video:        mediaField(media.KindVideo, snap.State.SeizureVideo),
	}
}

func (s *Service) renderIntake(w http.ResponseWriter, r *http.Request, status int, data *types.IntakePageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.renderTemplate(w, r, "page.intake", data); err != nil {
		s.logger.WithError(err).Error("failed to render intake page")
	}
}

func (s *Service) acquire(draftID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, busy := s.inflight[draftID]; busy {
		return false
	}
	s.inflight[draftID] = struct{}{}
	return true
}

func (s *Service) release(draftID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, draftID)
}

func setMediaError(data *types.IntakePageData, kind media.Kind, msg string) {
	switch kind {
	case media.KindImage:
		data.Image.Error = msg
	case media.KindVideo:
		data.Video.Error = msg
	}
}

func currentAttachment(state types.FormState, kind media.Kind) *types.Attachment {
	if kind == media.KindVideo {
		return state.SeizureVideo
	}
	return state.MRIPhoto
}
