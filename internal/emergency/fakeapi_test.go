package emergency

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stealthcompany.com/erdashboard/internal/waittime"
)

var testNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

func testCalculator() *waittime.Calculator {
	return waittime.NewCalculator(waittime.ClockFunc(func() time.Time { return testNow }), time.UTC)
}

func minutesAgo(m int) string {
	return testNow.Add(-time.Duration(m) * time.Minute).Format(time.RFC3339)
}

type fakeResponse struct {
	status      int
	contentType string
	body        string
}

func jsonResponse(body string) fakeResponse {
	return fakeResponse{status: http.StatusOK, contentType: "application/json", body: body}
}

// fakeHospitalAPI serves canned responses keyed by escaped request path
type fakeHospitalAPI struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]fakeResponse
	requested []string
}

func newFakeHospitalAPI(t *testing.T) *fakeHospitalAPI {
	t.Helper()
	api := &fakeHospitalAPI{responses: map[string]fakeResponse{}}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

func (f *fakeHospitalAPI) set(path string, resp fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = resp
}

func (f *fakeHospitalAPI) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func (f *fakeHospitalAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	path := r.URL.EscapedPath()
	f.requested = append(f.requested, path)
	resp, ok := f.responses[path]
	f.mu.Unlock()

	if !ok {
		resp = jsonResponse(`{"emTela": 0, "pacientes": []}`)
	}
	w.Header().Set("Content-Type", resp.contentType)
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func attendancePath(id string) string {
	return "/filaDeAtendimentoProntoSocorroV2/" + id + "/Pronto%20Socorro"
}

func triagePath(id string) string {
	return "/filaDeAtendimentoProntoSocorroV2/" + id + "/Triagem"
}
