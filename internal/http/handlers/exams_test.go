package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/domain/exam"
	"github.com/nbclinic/portal/internal/domain/partner"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/handlers"
	"github.com/nbclinic/portal/internal/http/middlewares"
	"github.com/nbclinic/portal/internal/repo/postgres"
)

// Keep Gin quiet during tests

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExamStore struct {
	createFn func(ctx context.Context, partnerID string, req exam.CreateRequest) (exam.Request, error)
	listFn   func(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error)
	getFn    func(ctx context.Context, id string) (exam.Request, error)
	updateFn func(ctx context.Context, id, status string) (exam.Request, error)
}

func (f *fakeExamStore) Create(ctx context.Context, partnerID string, req exam.CreateRequest) (exam.Request, error) {
	if f.createFn != nil {
		return f.createFn(ctx, partnerID, req)
	}
	return exam.Request{}, nil
}

func (f *fakeExamStore) List(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []exam.Request{}, "", nil
}

func (f *fakeExamStore) GetByID(ctx context.Context, id string) (exam.Request, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return exam.Request{}, nil
}

func (f *fakeExamStore) UpdateStatus(ctx context.Context, id, status string) (exam.Request, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, status)
	}
	return exam.Request{}, nil
}

type fakeDoctorLookup struct {
	getFn func(ctx context.Context, partnerID, id string) (partner.Doctor, error)
}

func (f *fakeDoctorLookup) GetByID(ctx context.Context, partnerID, id string) (partner.Doctor, error) {
	if f.getFn != nil {
		return f.getFn(ctx, partnerID, id)
	}
	return partner.Doctor{ID: id, PartnerID: partnerID}, nil
}

type fakeInsuranceLookup struct {
	getFn func(ctx context.Context, partnerID, id string) (partner.Insurance, error)
}

func (f *fakeInsuranceLookup) GetByID(ctx context.Context, partnerID, id string) (partner.Insurance, error) {
	if f.getFn != nil {
		return f.getFn(ctx, partnerID, id)
	}
	return partner.Insurance{ID: id, PartnerID: partnerID}, nil
}

// identityRouter mounts the handler behind a stub that installs the given
// identity, the way RequireAuth would.
func identityRouter(method, path string, role string, partnerID *string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, func(c *gin.Context) {
		middlewares.SetIdentity(c, uuid.NewString(), "user@nb.com", role, "Usuário", partnerID)
		h(c)
	})

	return r
}

func examBody(doctorID, paymentType string, insuranceID *string) string {
	now := time.Now().UTC()

	body := map[string]any{
		"patientName":      "Maria Souza",
		"birthDate":        now.AddDate(-30, 0, 0).Format(time.RFC3339),
		"consultationDate": now.Format(time.RFC3339),
		"doctorId":         doctorID,
		"examType":         "Hemograma",
		"paymentType":      paymentType,
	}
	if insuranceID != nil {
		body["insuranceId"] = *insuranceID
	}

	raw, _ := json.Marshal(body)
	return string(raw)
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateExam_UsesOwnPartnerLink(t *testing.T) {
	partnerID := uuid.NewString()
	doctorID := uuid.NewString()

	var gotPartner string

	store := &fakeExamStore{
		createFn: func(ctx context.Context, pid string, req exam.CreateRequest) (exam.Request, error) {
			gotPartner = pid
			return exam.Request{ID: uuid.NewString(), PartnerID: pid, Status: exam.StatusReferred}, nil
		},
	}

	h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/exams", profile.RolePartner, &partnerID, h.Create)

	w := postJSON(r, "/exams", examBody(doctorID, exam.PaymentPrivate, nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if gotPartner != partnerID {
		t.Fatalf("exam created for partner %q, want %q", gotPartner, partnerID)
	}
}

func TestCreateExam_NoPartnerLink(t *testing.T) {
	h := handlers.NewExamsHandler(&fakeExamStore{}, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/exams", profile.RolePartner, nil, h.Create)

	w := postJSON(r, "/exams", examBody(uuid.NewString(), exam.PaymentPrivate, nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", w.Code)
	}
}

func TestCreateExam_DoctorFromAnotherPartner(t *testing.T) {
	partnerID := uuid.NewString()

	doctors := &fakeDoctorLookup{
		getFn: func(ctx context.Context, pid, id string) (partner.Doctor, error) {
			return partner.Doctor{}, postgres.ErrDoctorNotFound
		},
	}

	h := handlers.NewExamsHandler(&fakeExamStore{}, doctors, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/exams", profile.RolePartner, &partnerID, h.Create)

	w := postJSON(r, "/exams", examBody(uuid.NewString(), exam.PaymentPrivate, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestCreateExam_InsuranceRequiredForConvenio(t *testing.T) {
	partnerID := uuid.NewString()

	h := handlers.NewExamsHandler(&fakeExamStore{}, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/exams", profile.RolePartner, &partnerID, h.Create)

	w := postJSON(r, "/exams", examBody(uuid.NewString(), exam.PaymentInsurance, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestCreateExam_ParticularDropsInsurance(t *testing.T) {
	partnerID := uuid.NewString()
	insuranceID := uuid.NewString()

	var gotInsurance *string

	store := &fakeExamStore{
		createFn: func(ctx context.Context, pid string, req exam.CreateRequest) (exam.Request, error) {
			gotInsurance = req.InsuranceID
			return exam.Request{ID: uuid.NewString()}, nil
		},
	}

	h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/exams", profile.RolePartner, &partnerID, h.Create)

	w := postJSON(r, "/exams", examBody(uuid.NewString(), exam.PaymentPrivate, &insuranceID))

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if gotInsurance != nil {
		t.Fatalf("insurance link kept on particular payment: %v", *gotInsurance)
	}
}

func TestListExams_PartnerAlwaysScoped(t *testing.T) {
	partnerID := uuid.NewString()

	var gotFilter exam.ListFilter

	store := &fakeExamStore{
		listFn: func(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error) {
			gotFilter = filter
			return []exam.Request{}, "", nil
		},
	}

	h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodGet, "/exams", profile.RolePartner, &partnerID, h.List)

	// the partnerId query must not override the profile link
	req := httptest.NewRequest(http.MethodGet, "/exams?partnerId="+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if gotFilter.PartnerID == nil || *gotFilter.PartnerID != partnerID {
		t.Fatalf("filter partner = %v, want %q", gotFilter.PartnerID, partnerID)
	}
}

func TestListExams_FirstPageIsCached(t *testing.T) {
	calls := 0

	store := &fakeExamStore{
		listFn: func(ctx context.Context, filter exam.ListFilter) ([]exam.Request, string, error) {
			calls++
			return []exam.Request{{ID: uuid.NewString()}}, "", nil
		},
	}

	h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodGet, "/exams", profile.RoleReception, nil, h.List)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/exams?status=encaminhado", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, body=%s", i, w.Code, w.Body.String())
		}
	}

	if calls != 1 {
		t.Fatalf("repo calls = %d, want 1 (second hit served from cache)", calls)
	}
}

func TestListExams_RejectsBadQuery(t *testing.T) {
	h := handlers.NewExamsHandler(&fakeExamStore{}, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodGet, "/exams", profile.RoleReception, nil, h.List)

	for _, query := range []string{"?limit=500", "?status=invalido", "?from=ontem"} {
		req := httptest.NewRequest(http.MethodGet, "/exams"+query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %q: got status %d, want 400", query, w.Code)
		}
	}
}

func TestGetExam_PartnerIsolation(t *testing.T) {
	partnerID := uuid.NewString()
	examID := uuid.NewString()

	store := &fakeExamStore{
		getFn: func(ctx context.Context, id string) (exam.Request, error) {
			return exam.Request{ID: id, PartnerID: uuid.NewString()}, nil
		},
	}

	h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
	r := identityRouter(http.MethodGet, "/exams/:id", profile.RolePartner, &partnerID, h.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/exams/"+examID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// another partner's referral must look like it does not exist
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestUpdateExamStatus(t *testing.T) {
	examID := uuid.NewString()

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeExamStore)
		wantStatus int
	}{
		{
			name: "success",
			body: `{"status":"executado"}`,
			setup: func(f *fakeExamStore) {
				f.updateFn = func(ctx context.Context, id, status string) (exam.Request, error) {
					return exam.Request{ID: id, Status: status}, nil
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown_status",
			body:       `{"status":"cancelado"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not_found",
			body: `{"status":"executado"}`,
			setup: func(f *fakeExamStore) {
				f.updateFn = func(ctx context.Context, id, status string) (exam.Request, error) {
					return exam.Request{}, exam.ErrNotFound
				}
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeExamStore{}
			if tt.setup != nil {
				tt.setup(store)
			}

			h := handlers.NewExamsHandler(store, &fakeDoctorLookup{}, &fakeInsuranceLookup{}, cache.New(time.Minute))
			r := identityRouter(http.MethodPatch, "/exams/:id/status", profile.RoleReception, nil, h.UpdateStatus)

			req := httptest.NewRequest(http.MethodPatch, "/exams/"+examID+"/status", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
