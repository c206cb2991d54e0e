package http

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"violin-coach-service/internal/app"
	"violin-coach-service/internal/catalog"
	"violin-coach-service/internal/config"
	"violin-coach-service/internal/models"
	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/pitch"
	"violin-coach-service/internal/service/pose"
	posemock "violin-coach-service/internal/service/pose/mock"
	"violin-coach-service/internal/service/session"
	"violin-coach-service/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Service:       config.ServiceConfig{Name: "violin-coach-service", Principal: "svc-test", HTTPPort: "0", Environment: "test"},
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
	}
	application, err := app.New(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return NewRouter(application)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func keypoints(angle float64) []pose.Keypoint {
	f := posemock.BowingFrame(angle, time.Time{})
	return f.Keypoints[:]
}

func startSession(t *testing.T, h http.Handler, username, piece string) store.PracticeSession {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/sessions", startSessionRequest{Username: username, PieceName: piece})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var row store.PracticeSession
	decode(t, rec, &row)
	return row
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/v1/liveness", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("liveness: expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/readiness", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readiness: expected 200 ready, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_StartSession(t *testing.T) {
	h := newTestRouter(t)

	row := startSession(t, h, "alice", "")
	if row.ID == "" || row.UserID == "" {
		t.Fatalf("expected populated ids, got %+v", row)
	}
	if row.PieceName != catalog.DefaultPieceName {
		t.Errorf("expected default piece, got %q", row.PieceName)
	}
}

func TestRouter_StartSession_Validation(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/sessions", startSessionRequest{PieceName: "Open String Cycle"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing username: expected 400, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] == "" {
		t.Error("expected an error message")
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions", startSessionRequest{Username: "alice", PieceName: "No Such Piece"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown piece: expected 404, got %d", rec.Code)
	}
}

func TestRouter_FrameFlow(t *testing.T) {
	h := newTestRouter(t)
	row := startSession(t, h, "alice", "Open String Cycle")

	framesPath := "/v1/sessions/" + row.ID + "/frames"

	// A full down stroke commits on the fourth frame.
	var last session.FrameResult
	for _, angle := range []float64{87, 84, 81, 78} {
		rec := do(t, h, http.MethodPost, framesPath, frameRequest{Keypoints: keypoints(angle)})
		if rec.Code != http.StatusOK {
			t.Fatalf("frame: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		decode(t, rec, &last)
	}
	if last.Observation.Direction != bow.Down {
		t.Errorf("expected committed down, got %v", last.Observation.Direction)
	}
	if last.Rhythm == nil {
		t.Error("expected rhythm progress on the committing frame")
	}

	rec := do(t, h, http.MethodPost, framesPath, frameRequest{Keypoints: []pose.Keypoint{{X: 1}}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short keypoints: expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions/no-such-session/frames",
		frameRequest{Keypoints: keypoints(90)})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}
}

func TestRouter_NoteFlow(t *testing.T) {
	h := newTestRouter(t)
	row := startSession(t, h, "alice", "Open String Cycle")

	rec := do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/notes", noteRequest{NoteName: "G3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("note: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stored pitch.NoteEvent
	decode(t, rec, &stored)
	if stored.NoteName != "G3" {
		t.Errorf("expected G3, got %q", stored.NoteName)
	}
	// The omitted frequency is filled from the note name.
	if math.Abs(stored.Frequency-196) > 0.1 {
		t.Errorf("expected ~196 Hz, got %v", stored.Frequency)
	}
	if stored.BowDirection != "" {
		t.Errorf("expected unattached note, got %q", stored.BowDirection)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/notes", noteRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing note name: expected 400, got %d", rec.Code)
	}
}

func TestRouter_EndSession(t *testing.T) {
	h := newTestRouter(t)
	row := startSession(t, h, "alice", "Open String Cycle")

	rec := do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/end", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary models.SessionSummary
	decode(t, rec, &summary)
	if summary.SessionID != row.ID {
		t.Errorf("expected session id %v, got %v", row.ID, summary.SessionID)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/end", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double end: expected 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/frames",
		frameRequest{Keypoints: keypoints(90)})
	if rec.Code != http.StatusConflict {
		t.Errorf("frame after end: expected 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/sessions/no-such-session/end", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}
}

func TestRouter_GetSession(t *testing.T) {
	h := newTestRouter(t)
	row := startSession(t, h, "alice", "Open String Cycle")

	rec := do(t, h, http.MethodGet, "/v1/sessions/"+row.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get active: expected 200, got %d", rec.Code)
	}
	var snap session.Snapshot
	decode(t, rec, &snap)
	if snap.State != "ACTIVE" || snap.SessionID != row.ID {
		t.Errorf("expected active snapshot, got %+v", snap)
	}

	do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/end", nil)

	rec = do(t, h, http.MethodGet, "/v1/sessions/"+row.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get ended: expected 200, got %d", rec.Code)
	}
	var ended store.PracticeSession
	decode(t, rec, &ended)
	if !ended.Ended() {
		t.Errorf("expected ended row, got %+v", ended)
	}

	rec = do(t, h, http.MethodGet, "/v1/sessions/no-such-session", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}
}

func TestRouter_Calibration(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/users/alice/calibration",
		calibrationRequest{Name: "concert", Keypoints: keypoints(90)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save calibration: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var saved calibrationResponse
	decode(t, rec, &saved)
	if saved.Name != "concert" || !saved.Active {
		t.Errorf("expected active concert profile, got %+v", saved)
	}
	if saved.Reference == nil || saved.Reference.ShoulderLine == 0 {
		t.Errorf("expected derived measurements, got %+v", saved.Reference)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/alice/calibration", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get calibration: expected 200, got %d", rec.Code)
	}
	var fetched calibrationResponse
	decode(t, rec, &fetched)
	if fetched.ID != saved.ID {
		t.Errorf("expected profile %v, got %v", saved.ID, fetched.ID)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/nobody/calibration", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/users/alice/calibration",
		calibrationRequest{Name: "bad", Keypoints: []pose.Keypoint{{X: 1}}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short keypoints: expected 400, got %d", rec.Code)
	}
}

func TestRouter_CalibratedSessionScoresPosture(t *testing.T) {
	h := newTestRouter(t)

	do(t, h, http.MethodPost, "/v1/users/alice/calibration",
		calibrationRequest{Name: "default", Keypoints: keypoints(90)})
	row := startSession(t, h, "alice", "Open String Cycle")

	rec := do(t, h, http.MethodPost, "/v1/sessions/"+row.ID+"/frames",
		frameRequest{Keypoints: keypoints(90)})
	if rec.Code != http.StatusOK {
		t.Fatalf("frame: expected 200, got %d", rec.Code)
	}
	var res session.FrameResult
	decode(t, rec, &res)
	if res.Posture == nil {
		t.Fatal("expected a posture assessment for a calibrated player")
	}
	if res.Posture.Status != "excellent" {
		t.Errorf("expected excellent posture, got %v", res.Posture.Status)
	}
}

func TestRouter_ListSessions(t *testing.T) {
	h := newTestRouter(t)

	first := startSession(t, h, "bob", "Open String Cycle")
	do(t, h, http.MethodPost, "/v1/sessions/"+first.ID+"/end", nil)
	second := startSession(t, h, "bob", "D Major Scale")
	do(t, h, http.MethodPost, "/v1/sessions/"+second.ID+"/end", nil)

	rec := do(t, h, http.MethodGet, "/v1/users/bob/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var rows []store.PracticeSession
	decode(t, rec, &rows)
	if len(rows) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(rows))
	}

	rec = do(t, h, http.MethodGet, "/v1/users/bob/sessions?limit=1", nil)
	decode(t, rec, &rows)
	if len(rows) != 1 {
		t.Errorf("expected 1 session with limit, got %d", len(rows))
	}

	rec = do(t, h, http.MethodGet, "/v1/users/bob/sessions?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/nobody/sessions", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", rec.Code)
	}
}

func TestRouter_Pieces(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/v1/pieces", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list pieces: expected 200, got %d", rec.Code)
	}
	var pieces []catalog.Piece
	decode(t, rec, &pieces)
	if len(pieces) != 3 {
		t.Errorf("expected 3 pieces, got %d", len(pieces))
	}

	rec = do(t, h, http.MethodGet, "/v1/pieces/Open%20String%20Cycle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get piece: expected 200, got %d", rec.Code)
	}
	var piece catalog.Piece
	decode(t, rec, &piece)
	if piece.Name != "Open String Cycle" {
		t.Errorf("expected Open String Cycle, got %q", piece.Name)
	}

	rec = do(t, h, http.MethodGet, "/v1/pieces/Nothing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown piece: expected 404, got %d", rec.Code)
	}
}
