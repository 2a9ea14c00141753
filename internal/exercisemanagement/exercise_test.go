package exercisemanagement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/contracts"
)

type fakeTaskPublisher struct {
	tasks []contracts.AudioTask
	err   error
}

func (f *fakeTaskPublisher) PublishTask(ctx context.Context, t contracts.AudioTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

type fakeStore struct {
	uploaded map[string][]byte
	deleted  []string
}

func (f *fakeStore) UploadFile(ctx context.Context, originalFilename string, reader io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	name := "obj-" + originalFilename
	f.uploaded[name] = b
	return name, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, objectName string) error {
	f.deleted = append(f.deleted, objectName)
	return nil
}

func (f *fakeStore) ObjectURL(objectName string) string { return "s3://audio/" + objectName }

func newTestService(pub TaskPublisher, store AudioStore) *ExerciseService {
	s := NewExerciseService(pub, store, zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func newTestRouter(s *ExerciseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(s, 1<<20)
	r := gin.New()
	r.POST("/api/exercise/start", h.StartExerciseHandler)
	r.POST("/api/exercise/upload", h.UploadExerciseHandler)
	return r
}

func TestStartGeneratesExerciseID(t *testing.T) {
	pub := &fakeTaskPublisher{}
	task, err := newTestService(pub, nil).Start(context.Background(), Submission{UserID: "u", AudioURL: "https://x/a.wav", ReferenceText: "привіт"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ExerciseID == "" || len(pub.tasks) != 1 || pub.tasks[0].ExerciseID != task.ExerciseID {
		t.Fatalf("unexpected task %+v, published %+v", task, pub.tasks)
	}
	if !task.SubmittedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected SubmittedAt %v", task.SubmittedAt)
	}
}

func TestStartValidation(t *testing.T) {
	s := newTestService(&fakeTaskPublisher{}, nil)
	for _, sub := range []Submission{
		{UserID: "u", ReferenceText: "x"},
		{UserID: "u", AudioURL: "a.wav", ReferenceText: "  "},
		{AudioURL: "a.wav", ReferenceText: "x"},
	} {
		if _, err := s.Start(context.Background(), sub); !errors.Is(err, ErrInvalidExercise) {
			t.Fatalf("expected ErrInvalidExercise for %+v, got %v", sub, err)
		}
	}
}

func TestStartHandler(t *testing.T) {
	pub := &fakeTaskPublisher{}
	r := newTestRouter(newTestService(pub, nil))

	body := `{"exerciseId":"ex-1","userId":"u-1","audioUrl":"https://cdn/a.wav","referenceText":"привіт як справи"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exercise/start", strings.NewReader(body)))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp ExerciseAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ExerciseID != "ex-1" || resp.Status != "queued" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(pub.tasks) != 1 || pub.tasks[0].ReferenceText != "привіт як справи" {
		t.Fatalf("unexpected published tasks %+v", pub.tasks)
	}
}

func TestStartHandlerErrors(t *testing.T) {
	cases := []struct {
		name string
		pub  *fakeTaskPublisher
		body string
		want int
	}{
		{"missing fields", &fakeTaskPublisher{}, `{"userId":"u"}`, http.StatusBadRequest},
		{"not json", &fakeTaskPublisher{}, `nope`, http.StatusBadRequest},
		{"broker down", &fakeTaskPublisher{err: errors.New("closed")}, `{"userId":"u","audioUrl":"a.wav","referenceText":"x"}`, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestRouter(newTestService(c.pub, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exercise/start", strings.NewReader(c.body)))
			if w.Code != c.want {
				t.Fatalf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func uploadRequest(t *testing.T, fields map[string]string, audio []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if audio != nil {
		fw, err := mw.CreateFormFile("audio", "take1.wav")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(audio)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/exercise/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	pub := &fakeTaskPublisher{}
	store := &fakeStore{}
	r := newTestRouter(newTestService(pub, store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, map[string]string{"userId": "u-1", "referenceText": "привіт"}, []byte("RIFF....WAVE")))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if string(store.uploaded["obj-take1.wav"]) != "RIFF....WAVE" {
		t.Fatalf("audio not stored: %v", store.uploaded)
	}
	if len(pub.tasks) != 1 || pub.tasks[0].AudioURL != "s3://audio/obj-take1.wav" {
		t.Fatalf("unexpected tasks %+v", pub.tasks)
	}
}

func TestUploadRemovesObjectWhenPublishFails(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(newTestService(&fakeTaskPublisher{err: errors.New("closed")}, store))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, map[string]string{"userId": "u-1", "referenceText": "привіт"}, []byte("data")))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "obj-take1.wav" {
		t.Fatalf("orphaned upload not removed: %v", store.deleted)
	}
}

func TestUploadHandlerErrors(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(newTestService(&fakeTaskPublisher{}, nil)).ServeHTTP(w, uploadRequest(t, map[string]string{"userId": "u", "referenceText": "x"}, []byte("a")))
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("uploads disabled: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	newTestRouter(newTestService(&fakeTaskPublisher{}, &fakeStore{})).ServeHTTP(w, uploadRequest(t, map[string]string{"userId": "u"}, nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status = %d", w.Code)
	}
}
