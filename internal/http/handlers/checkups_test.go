package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/domain/checkup"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/handlers"
)

type fakeCheckupStore struct {
	createFn func(ctx context.Context, req checkup.CreateRequest) (checkup.Request, error)
	listFn   func(ctx context.Context, filter checkup.ListFilter) ([]checkup.Request, string, error)
	getFn    func(ctx context.Context, id string) (checkup.Request, error)
	updateFn func(ctx context.Context, id, status string, unitID *string) (checkup.Request, error)
}

func (f *fakeCheckupStore) Create(ctx context.Context, req checkup.CreateRequest) (checkup.Request, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return checkup.Request{}, nil
}

func (f *fakeCheckupStore) List(ctx context.Context, filter checkup.ListFilter) ([]checkup.Request, string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []checkup.Request{}, "", nil
}

func (f *fakeCheckupStore) GetByID(ctx context.Context, id string) (checkup.Request, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return checkup.Request{}, nil
}

func (f *fakeCheckupStore) UpdateStatus(ctx context.Context, id, status string, unitID *string) (checkup.Request, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, status, unitID)
	}
	return checkup.Request{}, nil
}

type fakeBatteryLookup struct {
	getFn func(ctx context.Context, id string) (checkup.Battery, error)
}

func (f *fakeBatteryLookup) GetByID(ctx context.Context, id string) (checkup.Battery, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return checkup.Battery{ID: id, Name: "Admissional", Exams: []string{"Hemograma"}}, nil
}

type fakeUnitStore struct {
	units []checkup.Unit
}

func (f *fakeUnitStore) Create(ctx context.Context, req checkup.CreateUnitRequest) (checkup.Unit, error) {
	u := checkup.Unit{ID: uuid.NewString(), Name: req.Name, CreatedAt: time.Now().UTC()}
	f.units = append(f.units, u)
	return u, nil
}

func (f *fakeUnitStore) List(ctx context.Context) ([]checkup.Unit, error) {
	return f.units, nil
}

func (f *fakeUnitStore) Delete(ctx context.Context, id string) error {
	return nil
}

func checkupBody(batteryID string, unitID *string) string {
	now := time.Now().UTC()

	body := map[string]any{
		"patientName":       "João Pereira",
		"birthDate":         now.AddDate(-45, 0, 0).Format(time.RFC3339),
		"batteryId":         batteryID,
		"requestingCompany": "Transportes Silva",
		"examsToPerform":    []string{"Hemograma", "Audiometria"},
	}
	if unitID != nil {
		body["unitId"] = *unitID
	}

	raw, _ := json.Marshal(body)
	return string(raw)
}

func newCheckupsHandler(store *fakeCheckupStore, units *fakeUnitStore) *handlers.CheckupsHandler {
	return handlers.NewCheckupsHandler(store, &fakeBatteryLookup{}, units, cache.New(time.Minute))
}

func TestCreateCheckup(t *testing.T) {
	unit := checkup.Unit{ID: uuid.NewString(), Name: "Unidade Centro"}

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeCheckupStore, *fakeUnitStore)
		wantStatus int
	}{
		{
			name: "success",
			body: checkupBody(uuid.NewString(), nil),
			setup: func(s *fakeCheckupStore, _ *fakeUnitStore) {
				s.createFn = func(ctx context.Context, req checkup.CreateRequest) (checkup.Request, error) {
					return checkup.Request{ID: uuid.NewString(), Status: checkup.StatusRequested}, nil
				}
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "with_known_unit",
			body: checkupBody(uuid.NewString(), &unit.ID),
			setup: func(_ *fakeCheckupStore, u *fakeUnitStore) {
				u.units = []checkup.Unit{unit}
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown_unit",
			body:       checkupBody(uuid.NewString(), &unit.ID),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing_exams",
			body:       `{"patientName":"João","batteryId":"` + uuid.NewString() + `"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeCheckupStore{}
			units := &fakeUnitStore{}
			if tt.setup != nil {
				tt.setup(store, units)
			}

			h := newCheckupsHandler(store, units)
			r := identityRouter(http.MethodPost, "/checkups", profile.RoleCheckup, nil, h.Create)

			w := postJSON(r, "/checkups", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCreateCheckup_UnknownBattery(t *testing.T) {
	batteries := &fakeBatteryLookup{
		getFn: func(ctx context.Context, id string) (checkup.Battery, error) {
			return checkup.Battery{}, checkup.ErrBatteryNotFound
		},
	}

	h := handlers.NewCheckupsHandler(&fakeCheckupStore{}, batteries, &fakeUnitStore{}, cache.New(time.Minute))
	r := identityRouter(http.MethodPost, "/checkups", profile.RoleCheckup, nil, h.Create)

	w := postJSON(r, "/checkups", checkupBody(uuid.NewString(), nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestListCheckups_FirstPageIsCached(t *testing.T) {
	calls := 0

	store := &fakeCheckupStore{
		listFn: func(ctx context.Context, filter checkup.ListFilter) ([]checkup.Request, string, error) {
			calls++
			return []checkup.Request{{ID: uuid.NewString()}}, "", nil
		},
	}

	h := newCheckupsHandler(store, &fakeUnitStore{})
	r := identityRouter(http.MethodGet, "/checkups", profile.RoleCheckup, nil, h.List)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/checkups?status=solicitado", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, body=%s", i, w.Code, w.Body.String())
		}
	}

	if calls != 1 {
		t.Fatalf("repo calls = %d, want 1", calls)
	}
}

func TestUpdateCheckupStatus_AssignsUnit(t *testing.T) {
	unit := checkup.Unit{ID: uuid.NewString(), Name: "Unidade Norte"}

	var gotUnit *string

	store := &fakeCheckupStore{
		updateFn: func(ctx context.Context, id, status string, unitID *string) (checkup.Request, error) {
			gotUnit = unitID
			return checkup.Request{ID: id, Status: status, UnitID: unitID}, nil
		},
	}

	h := newCheckupsHandler(store, &fakeUnitStore{units: []checkup.Unit{unit}})
	r := identityRouter(http.MethodPatch, "/checkups/:id/status", profile.RoleCheckup, nil, h.UpdateStatus)

	body := `{"status":"encaminhado","unitId":"` + unit.ID + `"}`
	req := httptest.NewRequest(http.MethodPatch, "/checkups/"+uuid.NewString()+"/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
	if gotUnit == nil || *gotUnit != unit.ID {
		t.Fatalf("unit assignment = %v, want %q", gotUnit, unit.ID)
	}
}

func TestUpdateCheckupStatus_NotFound(t *testing.T) {
	store := &fakeCheckupStore{
		updateFn: func(ctx context.Context, id, status string, unitID *string) (checkup.Request, error) {
			return checkup.Request{}, checkup.ErrNotFound
		},
	}

	h := newCheckupsHandler(store, &fakeUnitStore{})
	r := identityRouter(http.MethodPatch, "/checkups/:id/status", profile.RoleCheckup, nil, h.UpdateStatus)

	body := `{"status":"executado"}`
	req := httptest.NewRequest(http.MethodPatch, "/checkups/"+uuid.NewString()+"/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}
