package submit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"neurolink/internal/formstate"
	"neurolink/internal/media"
	"neurolink/internal/session"
	"neurolink/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var fastPolicy = Policy{Timeout: 2 * time.Second, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}

func completeForm() types.FormState {
	return types.FormState{
		FullName:          "Youssef Trabelsi",
		BirthDate:         "04/07/2012",
		Gender:            types.GenderMale,
		CINNumber:         "09876543",
		RegionID:          "1",
		CityID:            "101",
		Address:           "5 avenue Habib Bourguiba",
		PhoneNumber:       "98765432",
		FirstSeizureDate:  "10/05/2024",
		SeizureDuration:   "3",
		SeizureFrequency:  "2",
		SeizureOccurrence: types.OccurrenceWeekly,
		SeizureType:       types.SeizureTypeAbsence,
	}
}

func newStore(state types.FormState) *formstate.Store {
	return formstate.New(nil, testLogger(), formstate.WithState(state))
}

func loggedIn() session.Provider {
	return session.NewMemory(&types.Identity{UserID: "17", Token: "tok-17"})
}

func TestSubmitSuccessResetsForm(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "/api/medical-forms/submit", r.URL.Path)
		assert.Equal(t, "17", r.URL.Query().Get("userId"))
		assert.Equal(t, "17", r.Header.Get("userId"))
		assert.Equal(t, "Bearer tok-17", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("form")), &payload))
		assert.Equal(t, "Youssef Trabelsi", payload["fullName"])
		assert.Equal(t, "2012-07-04", payload["birthDate"])
		assert.Equal(t, "WEEKLY", payload["seizureFrequency"])
		assert.Equal(t, "absence", payload["seizureType"])
		assert.EqualValues(t, 1, payload["governorate_id"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"formId":42,"message":"Form submitted successfully"}`))
	}))
	defer srv.Close()

	store := newStore(completeForm())
	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	pipeline := NewPipeline(store, transport, types.WireVariantWeb, testLogger())

	outcome, err := pipeline.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, "42", outcome.Result.FormID)
	assert.Equal(t, http.StatusCreated, outcome.Result.Status)
	assert.Equal(t, SuccessTarget, outcome.Navigate)
	assert.Equal(t, types.FormState{}, store.Get())
	assert.Equal(t, StateSuccess, pipeline.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	pipeline.Acknowledge()
	assert.Equal(t, StateIdle, pipeline.State())
}

func TestSubmitTimeoutPreservesForm(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	store := newStore(completeForm())
	policy := Policy{Timeout: 100 * time.Millisecond, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	transport := NewTransport(srv.URL, loggedIn(), nil, policy, testLogger())
	pipeline := NewPipeline(store, transport, types.WireVariantWeb, testLogger())

	outcome, err := pipeline.Submit(context.Background())

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "got %v", err)
	assert.Equal(t, StateFailure, outcome.State)
	assert.Equal(t, StateFailure, pipeline.State())
	assert.Equal(t, completeForm(), store.Get())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{UserMessage(err)}, outcome.Messages)
}

func TestSubmitRetriesNetworkErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	result, err := transport.Submit(context.Background(), types.WirePayload{}, types.Attachments{})
	require.NoError(t, err)
	assert.Equal(t, "abc", result.FormID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	_, err := transport.Submit(context.Background(), types.WirePayload{}, types.Attachments{})

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestServerErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "json message", status: 400, body: `{"message":"Invalid CIN"}`, want: "Invalid CIN"},
		{name: "json error", status: 500, body: `{"error":"File upload error: disk full"}`, want: "File upload error: disk full"},
		{name: "plain text", status: 502, body: "Bad gateway", want: "Bad gateway"},
		{name: "empty", status: 500, body: "", want: GenericUploadMessage},
		{name: "json without message", status: 500, body: `{"status":500}`, want: GenericUploadMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
			_, err := transport.Submit(context.Background(), types.WirePayload{}, types.Attachments{})

			var serverErr *ServerError
			require.True(t, errors.As(err, &serverErr))
			assert.Equal(t, tt.status, serverErr.Status)
			assert.Equal(t, tt.want, serverErr.Message)
			assert.Equal(t, tt.want, UserMessage(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestSubmitWithoutIdentityFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	store := newStore(completeForm())
	transport := NewTransport(srv.URL, session.NewMemory(nil), nil, fastPolicy, testLogger())
	pipeline := NewPipeline(store, transport, types.WireVariantWeb, testLogger())

	_, err := pipeline.Submit(context.Background())

	var preconditionErr *PreconditionError
	require.True(t, errors.As(err, &preconditionErr))
	assert.ErrorIs(t, err, types.ErrNoIdentity)
	assert.Equal(t, types.ErrNoIdentity.Error(), UserMessage(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, completeForm(), store.Get())
}

func TestSubmitInvalidFormMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	store := newStore(types.FormState{FullName: "Only a name"})
	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	pipeline := NewPipeline(store, transport, types.WireVariantWeb, testLogger())

	outcome, err := pipeline.Submit(context.Background())

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, StateInvalid, outcome.State)
	assert.NotContains(t, outcome.Messages, "Full name is required.")
	assert.Contains(t, outcome.Messages, "Birth date is required.")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSubmitLoadedStateWithUnknownEnumsMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	var state types.FormState
	require.NoError(t, json.Unmarshal([]byte(`{"seizureFrequency":"5","seizureOccurrence":"yearly","gender":"X"}`), &state))
	loaded := completeForm()
	loaded.SeizureFrequency = state.SeizureFrequency
	loaded.SeizureOccurrence = state.SeizureOccurrence
	loaded.Gender = state.Gender

	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	pipeline := NewPipeline(newStore(loaded), transport, types.WireVariantWeb, testLogger())

	outcome, err := pipeline.Submit(context.Background())

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, StateInvalid, outcome.State)
	assert.Equal(t, []string{"Gender must be M or F.", "Seizure occurrence must be daily, weekly or monthly."}, outcome.Messages)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// blockingSubmitter parks every call until released.
type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ types.WirePayload, _ types.Attachments) (*Result, error) {
	atomic.AddInt32(&b.calls, 1)
	b.entered <- struct{}{}
	<-b.release
	return &Result{Status: http.StatusOK, FormID: "1"}, nil
}

func TestConcurrentSubmitRejected(t *testing.T) {
	submitter := &blockingSubmitter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	pipeline := NewPipeline(newStore(completeForm()), submitter, types.WireVariantWeb, testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := pipeline.Submit(context.Background())
		assert.NoError(t, err)
	}()

	<-submitter.entered
	assert.Equal(t, StateSubmitting, pipeline.State())

	_, err := pipeline.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(submitter.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&submitter.calls))
	assert.Equal(t, StateSuccess, pipeline.State())
}

func TestSubmitSendsAttachments(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "irm.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("png-bytes"), 0o600))
	videoPath := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("mp4-bytes"), 0o600))

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))

		photo, header, err := r.FormFile("mriPhoto")
		require.NoError(t, err)
		defer photo.Close()
		data, _ := io.ReadAll(photo)
		assert.Equal(t, "png-bytes", string(data))
		assert.Equal(t, "mri_photo.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		video, header, err := r.FormFile("seizureVideo")
		require.NoError(t, err)
		defer video.Close()
		data, _ = io.ReadAll(video)
		assert.Equal(t, "mp4-bytes", string(data))
		assert.Equal(t, "clip.mp4", header.Filename)
		assert.Equal(t, "video/mp4", header.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(`{"formId":7}`))
	}))
	defer srv.Close()

	attachments := types.Attachments{
		Image: &types.Attachment{URI: imagePath, MimeType: "image/png"},
		Video: &types.Attachment{URI: "file://" + filepath.ToSlash(videoPath), MimeType: "video/mp4", FileName: "clip.mp4"},
	}

	transport := NewTransport(srv.URL, loggedIn(), media.SchemeOpener{}, fastPolicy, testLogger())
	result, err := transport.Submit(context.Background(), types.WirePayload{}, attachments)
	require.NoError(t, err)
	assert.Equal(t, "7", result.FormID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestReads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/medical-forms/doctor", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "recent", r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`[{"id":1,"patientName":"A"},{"id":2,"patientName":"B"}]`))
	})
	mux.HandleFunc("/api/medical-forms/1/response", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"responseId":9,"diagnosis":"focal epilepsy"}`))
	})
	mux.HandleFunc("/api/medical-forms/2/response", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"No response found for this form"}`))
	})
	mux.HandleFunc("/api/medical-forms/1/has-response", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "17", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{"hasResponse":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	transport := NewTransport(srv.URL, loggedIn(), nil, fastPolicy, testLogger())
	ctx := context.Background()

	forms, err := transport.ListForms(ctx, "recent")
	require.NoError(t, err)
	assert.Len(t, forms, 2)

	response, err := transport.FormResponse(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "focal epilepsy", response["diagnosis"])

	response, err = transport.FormResponse(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, response)

	has, err := transport.HasResponse(ctx, "1")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = NewTransport(srv.URL, session.NewMemory(nil), nil, fastPolicy, testLogger()).HasResponse(ctx, "1")
	assert.ErrorIs(t, err, types.ErrNoIdentity)
}

func TestPolicyBudget(t *testing.T) {
	assert.Equal(t, 94*time.Second, DefaultPolicy.Budget())
	assert.Equal(t, 6*time.Second+20*time.Millisecond, fastPolicy.Budget())
	assert.Equal(t, DefaultPolicy.Timeout, Policy{}.Budget())
}
