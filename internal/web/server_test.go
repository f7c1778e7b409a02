package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/session"
	"star-art-studio/internal/studio"
)

type stubBlueprints struct {
	release chan struct{}
	err     error
}

func (s *stubBlueprints) GenerateBlueprint(ctx context.Context, description string, opts generator.Options) (blueprint.Blueprint, error) {
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return blueprint.Blueprint{}, s.err
	}
	return blueprint.Blueprint{
		Scene: blueprint.Scene{
			Environment: "hillside",
			Subjects:    []string{"castle"},
			TimeOfDay:   blueprint.TimeSunset,
			Weather:     blueprint.WeatherClear,
		},
		Camera:      blueprint.Camera{Angle: blueprint.AngleWideShot, FOV: blueprint.FOVWide},
		Style:       blueprint.Style{ArtisticStyle: blueprint.StyleCinematic, Lighting: blueprint.LightingDramatic, Palette: blueprint.PaletteWarm},
		Rendering:   blueprint.Rendering{Effects: []string{}, AspectRatio: blueprint.Ratio16x9},
		FinalPrompt: "A castle on a hillside at sunset",
	}, nil
}

type stubImages struct{}

func (stubImages) GenerateImages(ctx context.Context, prompt string, ratio blueprint.AspectRatio) ([]generator.Image, error) {
	out := make([]generator.Image, generator.BatchSize)
	for i := range out {
		out[i] = generator.Image{MIMEType: generator.OutputMIMEType, Data: []byte("img" + string(rune('0'+i)))}
	}
	return out, nil
}

func newTestServer(t *testing.T, bp *stubBlueprints) *httptest.Server {
	t.Helper()
	ts, _ := newTestServerWithStore(t, bp)
	return ts
}

func newTestServerWithStore(t *testing.T, bp *stubBlueprints) (*httptest.Server, *session.Store) {
	t.Helper()
	store := session.NewStore(session.Options{
		NewStudio: func() *studio.Orchestrator {
			return studio.New(studio.Options{Blueprints: bp, Images: stubImages{}})
		},
	})
	srv, err := New(Options{Sessions: store})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createSession(t *testing.T, ts *httptest.Server) sessionView {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view sessionView
	decode(t, resp, &view)
	require.NotEmpty(t, view.ID)
	return view
}

func postGenerate(t *testing.T, ts *httptest.Server, id, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/generate", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func getView(t *testing.T, ts *httptest.Server, id string) sessionView {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view sessionView
	decode(t, resp, &view)
	return view
}

func waitForPhase(t *testing.T, ts *httptest.Server, id string, want studio.Phase) sessionView {
	t.Helper()
	var view sessionView
	require.Eventually(t, func() bool {
		view = getView(t, ts, id)
		return view.Phase == want
	}, 2*time.Second, 10*time.Millisecond)
	return view
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestOptionsListsSelectors(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})

	resp, err := http.Get(ts.URL + "/api/options")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Selectors    []blueprint.Selector `json:"selectors"`
		AspectRatios []string             `json:"aspectRatios"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Selectors, 5)
	assert.Equal(t, blueprint.Auto, body.Selectors[0].Options[0].Key)
	assert.Equal(t, blueprint.AspectRatios(), body.AspectRatios)
}

func TestCreateSessionStartsIdle(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})

	view := createSession(t, ts)
	assert.Equal(t, studio.PhaseIdle, view.Phase)
	assert.False(t, view.Loading)
	assert.Nil(t, view.Blueprint)
	assert.NotNil(t, view.Images)
	assert.Equal(t, blueprint.Auto, view.Options.TimeOfDay)
}

func TestGenerateRunsToDone(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})
	id := createSession(t, ts).ID

	resp := postGenerate(t, ts, id, `{"description":"A castle on a hill","options":{"timeOfDay":"sunset"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started sessionView
	decode(t, resp, &started)
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, "A castle on a hill", started.Description)

	view := waitForPhase(t, ts, id, studio.PhaseDone)
	require.NotNil(t, view.Blueprint)
	assert.Equal(t, blueprint.Ratio16x9, view.Blueprint.Rendering.AspectRatio)
	assert.Len(t, view.Images, generator.BatchSize)
	assert.Equal(t, "sunset", view.Options.TimeOfDay)
	assert.Equal(t, blueprint.Auto, view.Options.Weather)
	assert.Empty(t, view.Error)
}

func TestGenerateWhileBusyConflicts(t *testing.T) {
	bp := &stubBlueprints{release: make(chan struct{})}
	ts, store := newTestServerWithStore(t, bp)
	id := createSession(t, ts).ID

	resp := postGenerate(t, ts, id, `{"description":"first","options":{"weather":"misty"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp = postGenerate(t, ts, id, `{"description":"second","options":{"weather":"rainy"}}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "misty", store.Options(id).Weather, "a rejected request must not change saved options")

	close(bp.release)
	view := waitForPhase(t, ts, id, studio.PhaseDone)
	assert.Equal(t, "first", view.Description)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})
	id := createSession(t, ts).ID

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{`},
		{name: "empty description", body: `{"description":"   "}`},
		{name: "unknown option value", body: `{"description":"x","options":{"weather":"hail"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postGenerate(t, ts, id, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body apiError
			decode(t, resp, &body)
			assert.NotEmpty(t, body.Error)
		})
	}

	assert.Equal(t, studio.PhaseIdle, getView(t, ts, id).Phase)
}

func TestFailureIsReported(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{err: &generator.StageError{Kind: generator.ErrBlueprintFailed, Cause: io.ErrUnexpectedEOF}})
	id := createSession(t, ts).ID

	resp := postGenerate(t, ts, id, `{"description":"castle"}`)
	resp.Body.Close()

	view := waitForPhase(t, ts, id, studio.PhaseFailed)
	assert.Equal(t, generator.ErrBlueprintFailed.Error(), view.Error)
	assert.Nil(t, view.Blueprint)
	assert.Empty(t, view.Images)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})

	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/blueprint", "/api/sessions/nope/images/0"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestBlueprintAndImageDownloads(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})
	id := createSession(t, ts).ID

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/blueprint")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postGenerate(t, ts, id, `{"description":"castle"}`)
	resp.Body.Close()
	waitForPhase(t, ts, id, studio.PhaseDone)

	resp, err = http.Get(ts.URL + "/api/sessions/" + id + "/blueprint")
	require.NoError(t, err)
	var bp blueprint.Blueprint
	decode(t, resp, &bp)
	assert.Equal(t, "A castle on a hillside at sunset", bp.FinalPrompt)

	resp, err = http.Get(ts.URL + "/api/sessions/" + id + "/images/1")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("content-type"))
	assert.Equal(t, `attachment; filename="concept-2.jpg"`, resp.Header.Get("content-disposition"))
	assert.Equal(t, "img1", string(data))

	resp, err = http.Get(ts.URL + "/api/sessions/" + id + "/images/4")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticIndexIsServed(t *testing.T) {
	ts := newTestServer(t, &stubBlueprints{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Star Art Studio")
}
