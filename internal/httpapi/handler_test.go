package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trackers-salat/tracker-service/internal/devotion"
	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakePhotoStore struct {
	uploads []string
}

func (f *fakePhotoStore) UploadProfilePhoto(_ context.Context, userID string, data io.Reader, filename, _ string) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	path := "profiles/" + userID + "/" + filename
	f.uploads = append(f.uploads, path)
	return path, nil
}

func (f *fakePhotoStore) SignedURL(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	return "https://storage.example/" + objectPath + "?signed", nil
}

func newTestRouter(t *testing.T, photos PhotoStore) http.Handler {
	t.Helper()
	clock := fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, err := devotion.NewService(devotion.NewMemoryRepository(clock), clock, devotion.NewUUIDGenerator(), devotion.Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	r := chi.NewRouter()
	RegisterRoutes(r, svc, photos, nil)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPrayersLifecycle(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/prayers", "u1", map[string]any{
		"type": "Fajr", "location": "mosquée", "on_time": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[devotion.Prayer](t, rec)
	if created.ID == "" || created.Type != "Fajr" || !created.OnTime {
		t.Fatalf("unexpected prayer: %+v", created)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/prayers?days=7", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	list := decodeBody[struct {
		Items []devotion.Prayer `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 prayer, got %d", len(list.Items))
	}

	rec = doJSON(t, h, http.MethodPatch, "/v1/prayers/"+created.ID, "u1", map[string]any{"note": "en retard"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[devotion.Prayer](t, rec); got.Note != "en retard" {
		t.Fatalf("expected note to be updated, got %q", got.Note)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/prayers/"+created.ID, "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/v1/prayers/"+created.ID, "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeBody[sharederrors.ErrorResponse](t, rec); got.Code != sharederrors.CodeNotFound {
		t.Fatalf("expected not_found code, got %q", got.Code)
	}
}

func TestPrayers_RejectsBadInput(t *testing.T) {
	h := newTestRouter(t, nil)

	cases := []struct {
		name   string
		method string
		target string
		userID string
		body   any
		status int
	}{
		{name: "missing user", method: http.MethodGet, target: "/v1/prayers", status: http.StatusUnauthorized},
		{name: "bad days", method: http.MethodGet, target: "/v1/prayers?days=abc", userID: "u1", status: http.StatusBadRequest},
		{name: "negative days", method: http.MethodGet, target: "/v1/prayers?days=-1", userID: "u1", status: http.StatusBadRequest},
		{name: "unknown type", method: http.MethodPost, target: "/v1/prayers", userID: "u1", body: map[string]any{"type": "Witr", "location": "maison"}, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, target: "/v1/prayers", userID: "u1", body: map[string]any{"type": "Fajr", "location": "maison", "extra": 1}, status: http.StatusBadRequest},
		{name: "empty patch", method: http.MethodPatch, target: "/v1/prayers/abc", userID: "u1", body: map[string]any{}, status: http.StatusBadRequest},
		{name: "patch missing prayer", method: http.MethodPatch, target: "/v1/prayers/abc", userID: "u1", body: map[string]any{"on_time": true}, status: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, tc.method, tc.target, tc.userID, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestInvocationsLifecycle(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/invocations", "u1", map[string]any{
		"name": "SubhanAllah", "category": "matin", "count": 33,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[devotion.Invocation](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/v1/invocations/"+created.ID+"/increment", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[devotion.Invocation](t, rec); got.Count != 34 {
		t.Fatalf("expected count 34, got %d", got.Count)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/invocations", "u1", nil)
	list := decodeBody[struct {
		Items []devotion.Invocation `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 invocation today, got %d", len(list.Items))
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/invocations", "u1", map[string]any{
		"name": "SubhanAllah", "category": "minuit", "count": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/invocations/"+created.ID, "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

type steppingClock struct{ now time.Time }

func (c *steppingClock) Now() time.Time { return c.now }

func TestInvocations_DefaultsToToday(t *testing.T) {
	clock := &steppingClock{now: time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)}
	svc, err := devotion.NewService(devotion.NewMemoryRepository(clock), clock, devotion.NewUUIDGenerator(), devotion.Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	r := chi.NewRouter()
	RegisterRoutes(r, svc, nil, nil)

	for _, at := range []time.Time{clock.now, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)} {
		clock.now = at
		rec := doJSON(t, r, http.MethodPost, "/v1/invocations", "u1", map[string]any{
			"name": "SubhanAllah", "category": "matin", "count": 1,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	clock.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := map[string]int{
		"/v1/invocations":        1,
		"/v1/invocations?days=1": 1,
		"/v1/invocations?days=7": 2,
		"/v1/invocations?days=0": 2,
	}
	for target, want := range cases {
		t.Run(target, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodGet, target, "u1", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			list := decodeBody[struct {
				Items []devotion.Invocation `json:"items"`
			}](t, rec)
			if len(list.Items) != want {
				t.Fatalf("expected %d invocations, got %d", want, len(list.Items))
			}
		})
	}
}

func TestInvocationOptions(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/invocation-options", "u1", nil)
	list := decodeBody[struct {
		Items []devotion.InvocationOption `json:"items"`
	}](t, rec)
	if len(list.Items) != len(devotion.DefaultInvocationOptions) {
		t.Fatalf("expected seeded options, got %d", len(list.Items))
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/invocation-options", "u1", map[string]string{"name": "allahu akbar"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate option, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/invocation-options", "u1", map[string]string{"name": "Hasbunallah"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/invocation-options?name=Hasbunallah", "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/v1/invocation-options", "u1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without name, got %d", rec.Code)
	}
}

func TestCatalog(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/catalog", "u1", map[string]string{"text": "Ayat al-Kursi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	entry := decodeBody[devotion.CatalogEntry](t, rec)

	rec = doJSON(t, h, http.MethodGet, "/v1/catalog", "u2", nil)
	list := decodeBody[struct {
		Items []devotion.CatalogEntry `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].Text != "Ayat al-Kursi" {
		t.Fatalf("expected shared catalog entry, got %+v", list.Items)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/catalog/"+entry.ID, "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestStatisticsAndBadges(t *testing.T) {
	h := newTestRouter(t, nil)

	doJSON(t, h, http.MethodPost, "/v1/prayers", "u1", map[string]any{"type": "Asr", "location": "maison"})
	doJSON(t, h, http.MethodPost, "/v1/invocations", "u1", map[string]any{"name": "Alhamdulillah", "category": "soir", "count": 5})

	rec := doJSON(t, h, http.MethodGet, "/v1/statistics", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stats := decodeBody[devotion.Statistics](t, rec)
	if stats.Window.Days != 7 || stats.TotalPrayers != 1 || stats.HomePrayers != 1 || stats.TotalInvocations != 5 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/statistics?days=0", "u1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for days=0, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/badges", "u1", nil)
	table := decodeBody[struct {
		Items []devotion.Badge `json:"items"`
	}](t, rec)
	if len(table.Items) != len(devotion.DefaultBadges()) {
		t.Fatalf("expected default badge table, got %d badges", len(table.Items))
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/badges/me", "u1", nil)
	report := decodeBody[devotion.BadgeReport](t, rec)
	if report.Window != nil {
		t.Fatalf("expected all-time report")
	}
	if len(report.Earned) != 2 {
		t.Fatalf("expected 2 earned badges, got %+v", report.Earned)
	}
}

func multipartPhoto(t *testing.T, field, filename, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestProfilePhoto(t *testing.T) {
	photos := &fakePhotoStore{}
	h := newTestRouter(t, photos)

	body, ct := multipartPhoto(t, "photo", "me.png", "image/png")
	req := httptest.NewRequest(http.MethodPost, "/v1/profile/photo", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(photos.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(photos.uploads))
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/profile", "u1", nil)
	view := decodeBody[map[string]any](t, rec)
	if view["photo_url"] != "https://storage.example/profiles/u1/me.png?signed" {
		t.Fatalf("unexpected photo url %v", view["photo_url"])
	}

	body, ct = multipartPhoto(t, "photo", "me.gif", "image/gif")
	req = httptest.NewRequest(http.MethodPost, "/v1/profile/photo", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for gif, got %d", rec.Code)
	}
}

func TestProfilePhoto_NotConfigured(t *testing.T) {
	h := newTestRouter(t, nil)

	body, ct := multipartPhoto(t, "photo", "me.jpg", "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/v1/profile/photo", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLive_StreamsSummaries(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/live?days=7", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-ID", "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	// Mutations go through the same router.
	post, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/prayers", strings.NewReader(`{"type":"Isha","location":"maison"}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	post.Header.Set("Content-Type", "application/json")
	post.Header.Set("X-User-ID", "u1")

	scanner := bufio.NewScanner(resp.Body)
	posted := false
	deadline := time.After(3 * time.Second)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for summary with a prayer")
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed early")
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var summary devotion.Summary
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &summary); err != nil {
				t.Fatalf("decode summary: %v", err)
			}
			if summary.Totals.TotalPrayers == 1 {
				return
			}
			if !posted && summary.PrayersLoaded && summary.InvocationsLoaded {
				postResp, err := srv.Client().Do(post)
				if err != nil {
					t.Fatalf("post prayer: %v", err)
				}
				postResp.Body.Close()
				if postResp.StatusCode != http.StatusCreated {
					t.Fatalf("expected 201, got %d", postResp.StatusCode)
				}
				posted = true
			}
		}
	}
}

func TestLive_RejectsZeroDays(t *testing.T) {
	h := newTestRouter(t, nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/live?days=0", "u1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
