// Package submit sends a finished intake form to the referral backend and
// drives the submission state machine around it.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"neurolink/internal/media"
	"neurolink/internal/session"
	"neurolink/pkg/types"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	submitPath      = "/api/medical-forms/submit"
	doctorFormsPath = "/api/medical-forms/doctor"
	responsePath    = "/api/medical-forms/%s/response"
	hasResponsePath = "/api/medical-forms/%s/has-response"
)

// Policy is the one place submission timing lives.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

var DefaultPolicy = Policy{
	Timeout:     30 * time.Second,
	MaxAttempts: 3,
	RetryDelay:  2 * time.Second,
}

func (p Policy) normalized() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	return p
}

// Budget is the longest a submission can take, every attempt timing out.
func (p Policy) Budget() time.Duration {
	p = p.normalized()
	return time.Duration(p.MaxAttempts)*p.Timeout + time.Duration(p.MaxAttempts-1)*p.RetryDelay
}

// Result is the parsed success body.
type Result struct {
	Status  int
	FormID  string
	Message string
	Body    map[string]any
}

// Submitter is what the pipeline needs from a transport.
type Submitter interface {
	Submit(ctx context.Context, payload types.WirePayload, attachments types.Attachments) (*Result, error)
}

type Transport struct {
	http     *resty.Client
	sessions session.Provider
	opener   media.Opener
	policy   Policy
	logger   logrus.FieldLogger
}

var _ Submitter = (*Transport)(nil)

func NewTransport(baseURL string, sessions session.Provider, opener media.Opener, policy Policy, logger logrus.FieldLogger) *Transport {
	if opener == nil {
		opener = media.SchemeOpener{}
	}

	return &Transport{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")),
		sessions: sessions,
		opener:   opener,
		policy:   policy.normalized(),
		logger:   logger,
	}
}

func (t *Transport) Policy() Policy {
	return t.policy
}

// Submit posts the payload as multipart form data. Only network errors are
// retried; attachments are reopened for every attempt.
func (t *Transport) Submit(ctx context.Context, payload types.WirePayload, attachments types.Attachments) (*Result, error) {
	identity, err := session.Require(ctx, t.sessions)
	if err != nil {
		return nil, &PreconditionError{Reason: types.ErrNoIdentity.Error(), Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form payload: %w", err)
	}

	entry := t.logger.WithField("user_id", identity.UserID)

	for attempt := 1; ; attempt++ {
		result, err := t.attempt(ctx, identity, body, attachments)
		if err == nil {
			entry.WithFields(logrus.Fields{
				"attempt": attempt,
				"form_id": result.FormID,
			}).Info("medical form submitted")
			return result, nil
		}

		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			entry.WithError(err).WithField("attempt", attempt).Error("medical form submission failed")
			return nil, err
		}

		netErr.Attempts = attempt
		if attempt >= t.policy.MaxAttempts {
			entry.WithError(err).WithField("attempt", attempt).Error("medical form submission failed, giving up")
			return nil, netErr
		}

		entry.WithError(netErr.Err).
			WithField("attempt", attempt).
			WithField("retry_in", t.policy.RetryDelay.String()).
			Warn("network error submitting medical form, retrying")

		select {
		case <-time.After(t.policy.RetryDelay):
		case <-ctx.Done():
			return nil, netErr
		}
	}
}

func (t *Transport) attempt(ctx context.Context, identity types.Identity, body []byte, attachments types.Attachments) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.policy.Timeout)
	defer cancel()

	req := t.http.R().
		SetContext(attemptCtx).
		SetHeaders(session.AuthHeaders(identity)).
		SetQueryParam("userId", identity.UserID).
		SetMultipartFormData(map[string]string{"form": string(body)})

	parts := []struct {
		kind       media.Kind
		attachment *types.Attachment
	}{
		{media.KindImage, attachments.Image},
		{media.KindVideo, attachments.Video},
	}

	for _, part := range parts {
		if part.attachment == nil {
			continue
		}

		rc, err := t.opener.Open(attemptCtx, part.attachment.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s attachment: %w", part.kind.FieldName(), err)
		}
		defer rc.Close()

		fileName := part.attachment.FileName
		if fileName == "" {
			fileName = media.DefaultFileName(part.kind, part.attachment.MimeType)
		}

		req.SetMultipartField(part.kind.FieldName(), fileName, part.attachment.MimeType, rc)
	}

	resp, err := req.Post(submitPath)
	if err != nil {
		return nil, t.classify(ctx, attemptCtx, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &ServerError{Status: resp.StatusCode(), Message: serverMessage(resp.Body())}
	}

	return parseResult(resp.StatusCode(), resp.Body()), nil
}

// classify separates an attempt deadline from a dead connection. A caller
// cancellation is neither and is returned as is.
func (t *Transport) classify(parent, attemptCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: t.policy.Timeout, Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Timeout: t.policy.Timeout, Err: err}
	}

	return &NetworkError{Attempts: 1, Err: err}
}

func serverMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return GenericUploadMessage
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return GenericUploadMessage
	}

	return string(trimmed)
}

func parseResult(status int, body []byte) *Result {
	result := &Result{Status: status}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var parsed map[string]any
	if err := decoder.Decode(&parsed); err != nil {
		return result
	}

	result.Body = parsed
	result.FormID = idString(parsed["formId"])
	if result.FormID == "" {
		result.FormID = idString(parsed["id"])
	}
	if msg, ok := parsed["message"].(string); ok {
		result.Message = msg
	}

	return result
}

func idString(v any) string {
	switch id := v.(type) {
	case json.Number:
		return id.String()
	case string:
		return id
	}
	return ""
}

// ListForms returns the caller's submitted forms. filter is one of all,
// active, completed or recent.
func (t *Transport) ListForms(ctx context.Context, filter string) ([]map[string]any, error) {
	var out []map[string]any
	params := map[string]string{}
	if filter != "" {
		params["filter"] = filter
	}

	if err := t.read(ctx, doctorFormsPath, params, &out); err != nil {
		return nil, err
	}

	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// FormResponse returns the latest neurologist response to a form, nil when
// none exists yet.
func (t *Transport) FormResponse(ctx context.Context, formID string) (map[string]any, error) {
	var out map[string]any
	if err := t.read(ctx, fmt.Sprintf(responsePath, formID), nil, &out); err != nil {
		return nil, err
	}

	if _, ok := out["responseId"]; !ok {
		return nil, nil
	}
	return out, nil
}

func (t *Transport) HasResponse(ctx context.Context, formID string) (bool, error) {
	var out struct {
		HasResponse bool `json:"hasResponse"`
	}
	if err := t.read(ctx, fmt.Sprintf(hasResponsePath, formID), nil, &out); err != nil {
		return false, err
	}
	return out.HasResponse, nil
}

func (t *Transport) read(ctx context.Context, path string, params map[string]string, out any) error {
	identity, err := session.Require(ctx, t.sessions)
	if err != nil {
		return &PreconditionError{Reason: types.ErrNoIdentity.Error(), Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.policy.Timeout)
	defer cancel()

	resp, err := t.http.R().
		SetContext(attemptCtx).
		SetHeaders(session.AuthHeaders(identity)).
		SetQueryParam("userId", identity.UserID).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return t.classify(ctx, attemptCtx, err)
	}

	if resp.IsError() {
		return &ServerError{Status: resp.StatusCode(), Message: serverMessage(resp.Body())}
	}

	decoder := json.NewDecoder(bytes.NewReader(resp.Body()))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}
