package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/equine-appointment-scheduling/internal/availability"
	"github.com/hackgods/equine-appointment-scheduling/internal/config"
	redisclient "github.com/hackgods/equine-appointment-scheduling/internal/redis"
	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

type testServer struct {
	handler http.Handler
	repo    *appointment.MemoryRepository
	pro     appointment.Professional
	owner   appointment.Owner
	animal  uuid.UUID
	day     time.Time // a bookable day, three days from now
}

func everyDay() schedule.WorkingHours {
	wh := schedule.WorkingHours{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		wh[d] = schedule.DayHours{Active: true, Start: "08:00", End: "17:00"}
	}
	return wh
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	lat, lng, radius := 48.85, 2.35, 40.0
	repo := appointment.NewMemoryRepository()
	pro := appointment.Professional{
		ID:                  uuid.New(),
		Name:                "Dr. Lefevre",
		WorkingHours:        everyDay(),
		Lat:                 &lat,
		Lng:                 &lng,
		RadiusKm:            &radius,
		ConsultationMinutes: 60,
	}
	owner := appointment.Owner{ID: uuid.New(), Name: "Lucie"}
	animal := uuid.New()
	repo.PutProfessional(pro)
	repo.PutOwner(owner, animal)

	cfg := config.Config{DefaultConsultation: 60}
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), cfg, zerolog.Nop())
	engine := availability.NewEngine(repo, cfg.DefaultConsultation, zerolog.Nop())

	start, _ := schedule.DayBounds(time.Now().UTC().AddDate(0, 0, 3))

	return &testServer{
		handler: NewRouter(RouterConfig{Service: svc, Engine: engine, Env: "test", Logger: zerolog.Nop()}),
		repo:    repo,
		pro:     pro,
		owner:   owner,
		animal:  animal,
		day:     start,
	}
}

func (s *testServer) do(t *testing.T, method, path string, actor *appointment.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(HeaderUserID, actor.UserID.String())
		req.Header.Set(HeaderUserRole, string(actor.Role))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) ownerActor() *appointment.Actor {
	return &appointment.Actor{UserID: s.owner.ID, Role: appointment.RoleOwner}
}

func (s *testServer) proActor() *appointment.Actor {
	return &appointment.Actor{UserID: s.pro.ID, Role: appointment.RolePro}
}

func (s *testServer) createRequest(slot time.Time) CreateAppointmentRequest {
	lat, lng := 48.86, 2.34
	return CreateAppointmentRequest{
		ProID:      s.pro.ID.String(),
		AnimalIDs:  []string{s.animal.String()},
		MainSlot:   slot,
		Comment:    "Lameness on the left foreleg",
		Address:    "Ecurie du Parc, Paris",
		AddressLat: &lat,
		AddressLng: &lng,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestCreateAppointment_Created(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", s.ownerActor(), s.createRequest(s.day.Add(10*time.Hour)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decode[AppointmentResponse](t, rec)
	if resp.Status != "pending" || !resp.GeoValidated {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.AllowedActions) != 1 || resp.AllowedActions[0] != "withdraw" {
		t.Fatalf("owner of a pending appointment should only withdraw, got %v", resp.AllowedActions)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestCreateAppointment_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	slot := s.day.Add(10 * time.Hour)

	far := s.createRequest(slot.Add(time.Hour))
	farLat, farLng := 45.76, 4.84 // Lyon
	far.AddressLat, far.AddressLng = &farLat, &farLng

	noComment := s.createRequest(slot.Add(2 * time.Hour))
	noComment.Comment = ""

	sameDay := s.createRequest(time.Now().UTC().Add(time.Minute))

	unknownPro := s.createRequest(slot.Add(3 * time.Hour))
	unknownPro.ProID = uuid.NewString()

	if rec := s.do(t, http.MethodPost, "/appointments", s.ownerActor(), s.createRequest(slot)); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: %d %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		name  string
		actor *appointment.Actor
		body  any
		want  int
		code  string
	}{
		{"no identity", nil, s.createRequest(slot), http.StatusUnauthorized, "unauthenticated"},
		{"pro cannot book", s.proActor(), s.createRequest(slot), http.StatusForbidden, "forbidden"},
		{"bad pro id", s.ownerActor(), map[string]any{"pro_id": "nope"}, http.StatusBadRequest, "invalid_pro_id"},
		{"missing comment", s.ownerActor(), noComment, http.StatusBadRequest, "validation_failed"},
		{"same day", s.ownerActor(), sameDay, http.StatusBadRequest, "validation_failed"},
		{"outside geofence", s.ownerActor(), far, http.StatusUnprocessableEntity, "outside_service_area"},
		{"slot taken", s.ownerActor(), s.createRequest(slot), http.StatusConflict, "slot_unavailable"},
		{"unknown pro", s.ownerActor(), unknownPro, http.StatusNotFound, "professional_not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/appointments", tc.actor, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Error != tc.code {
				t.Fatalf("error = %q, want %q", resp.Error, tc.code)
			}
			if tc.code == "outside_service_area" && (resp.DistanceKm == nil || *resp.DistanceKm < 300) {
				t.Fatalf("expected the computed distance in the response, got %v", resp.DistanceKm)
			}
		})
	}
}

func TestTransition_AcceptThenCancel(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", s.ownerActor(), s.createRequest(s.day.Add(9*time.Hour)))
	created := decode[AppointmentResponse](t, rec)
	path := "/appointments/" + created.ID.String() + "/transitions"

	// The owner cannot accept their own request.
	rec = s.do(t, http.MethodPost, path, s.ownerActor(), TransitionRequest{Action: "accept"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("owner accept: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, path, s.proActor(), TransitionRequest{Action: "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[AppointmentResponse](t, rec); got.Status != "confirmed" {
		t.Fatalf("status after accept = %s", got.Status)
	}

	rec = s.do(t, http.MethodPost, path, s.proActor(), TransitionRequest{Action: "accept"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second accept: status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "invalid_status_transition" {
		t.Fatalf("error = %q", got.Error)
	}

	rec = s.do(t, http.MethodPost, path, s.ownerActor(), TransitionRequest{Action: "cancel"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d", rec.Code)
	}
	if got := decode[AppointmentResponse](t, rec); got.Status != "canceled" || len(got.AllowedActions) != 0 {
		t.Fatalf("unexpected canceled response %+v", got)
	}
}

func TestTransition_BadRequests(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments/not-a-uuid/transitions", s.proActor(), TransitionRequest{Action: "accept"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/transitions", s.proActor(), TransitionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing action: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/transitions", s.proActor(), TransitionRequest{Action: "accept"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown appointment: status = %d", rec.Code)
	}
}

func TestTransition_ElapseRejectedForUsers(t *testing.T) {
	s := newTestServer(t)

	past := time.Now().UTC().Add(-72 * time.Hour).Truncate(time.Hour)
	id := uuid.New()
	s.repo.PutAppointment(appointment.Appointment{
		ID:              id,
		ProID:           s.pro.ID,
		OwnerID:         s.owner.ID,
		AnimalIDs:       []uuid.UUID{s.animal},
		MainSlot:        past,
		DurationMinutes: 60,
		Status:          appointment.StatusCompleted,
		Comment:         "Vaccination",
		Address:         "Ecurie du Lac",
		CreatedAt:       past.Add(-48 * time.Hour),
		UpdatedAt:       past,
	})
	path := "/appointments/" + id.String() + "/transitions"

	for _, actor := range []*appointment.Actor{s.ownerActor(), s.proActor()} {
		rec := s.do(t, http.MethodPost, path, actor, TransitionRequest{Action: "elapse"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("%s elapse: status = %d, body %s", actor.Role, rec.Code, rec.Body.String())
		}
		if got := decode[ErrorResponse](t, rec); got.Error != "invalid_status_transition" {
			t.Fatalf("%s elapse: error = %q", actor.Role, got.Error)
		}
	}
}

func TestGetAndListAppointments(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", s.ownerActor(), s.createRequest(s.day.Add(11*time.Hour)))
	created := decode[AppointmentResponse](t, rec)

	rec = s.do(t, http.MethodGet, "/appointments/"+created.ID.String(), s.proActor(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	got := decode[AppointmentResponse](t, rec)
	want := []string{"accept", "propose_reschedule", "reject"}
	if len(got.AllowedActions) != len(want) {
		t.Fatalf("pro actions = %v, want %v", got.AllowedActions, want)
	}
	for i := range want {
		if got.AllowedActions[i] != want[i] {
			t.Fatalf("pro actions = %v, want %v", got.AllowedActions, want)
		}
	}

	stranger := &appointment.Actor{UserID: uuid.New(), Role: appointment.RoleOwner}
	if rec := s.do(t, http.MethodGet, "/appointments/"+created.ID.String(), stranger, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger get: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/appointments?limit=10", s.ownerActor(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	list := decode[AppointmentListResponse](t, rec)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID || list.Limit != 10 {
		t.Fatalf("unexpected list %+v", list)
	}

	if rec := s.do(t, http.MethodGet, "/appointments?limit=500", s.ownerActor(), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized limit: status = %d", rec.Code)
	}
}

func TestAvailability(t *testing.T) {
	s := newTestServer(t)

	slot := s.day.Add(10 * time.Hour)
	if rec := s.do(t, http.MethodPost, "/appointments", s.ownerActor(), s.createRequest(slot)); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: %d", rec.Code)
	}

	path := "/professionals/" + s.pro.ID.String() + "/availability?date=" + s.day.Format(dateLayout)
	rec := s.do(t, http.MethodGet, path, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decode[AvailabilityResponse](t, rec)
	if len(resp.Slots) != 9 {
		t.Fatalf("expected 9 hourly slots, got %d", len(resp.Slots))
	}
	if resp.DurationMinutes != 60 {
		t.Fatalf("duration_minutes = %d, want the professional default 60", resp.DurationMinutes)
	}
	for _, sl := range resp.Slots {
		if (sl.Time == "10:00") != sl.IsBooked {
			t.Fatalf("slot %s booked=%t", sl.Time, sl.IsBooked)
		}
	}

	today := time.Now().UTC().Format(dateLayout)
	rec = s.do(t, http.MethodGet, "/professionals/"+s.pro.ID.String()+"/availability?date="+today, nil, nil)
	if got := decode[AvailabilityResponse](t, rec); len(got.Slots) != 0 {
		t.Fatalf("today should have no slots, got %d", len(got.Slots))
	}

	bad := []string{
		"/professionals/" + s.pro.ID.String() + "/availability?date=21-10-2026",
		"/professionals/" + s.pro.ID.String() + "/availability?date=" + s.day.Format(dateLayout) + "&duration=abc",
		"/professionals/nope/availability?date=" + s.day.Format(dateLayout),
	}
	for _, p := range bad {
		if rec := s.do(t, http.MethodGet, p, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", p, rec.Code)
		}
	}

	rec = s.do(t, http.MethodGet, "/professionals/"+uuid.NewString()+"/availability?date="+s.day.Format(dateLayout), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pro: status = %d", rec.Code)
	}
}

func TestAvailability_ReportsEffectiveDuration(t *testing.T) {
	s := newTestServer(t)

	farrier := appointment.Professional{
		ID:                  uuid.New(),
		Name:                "Farrier",
		WorkingHours:        everyDay(),
		ConsultationMinutes: 45,
	}
	s.repo.PutProfessional(farrier)
	base := "/professionals/" + farrier.ID.String() + "/availability?date=" + s.day.Format(dateLayout)

	cases := []struct {
		query string
		want  int
	}{
		{"", 45},
		{"&duration=0", 45},
		{"&duration=90", 90},
	}
	for _, tc := range cases {
		rec := s.do(t, http.MethodGet, base+tc.query, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tc.query, rec.Code)
		}
		if got := decode[AvailabilityResponse](t, rec); got.DurationMinutes != tc.want {
			t.Fatalf("%q: duration_minutes = %d, want %d", tc.query, got.DurationMinutes, tc.want)
		}
	}

	// The field is present even when no duration was requested.
	rec := s.do(t, http.MethodGet, base, nil, nil)
	if !strings.Contains(rec.Body.String(), `"duration_minutes":45`) {
		t.Fatalf("duration_minutes missing from body %s", rec.Body.String())
	}
}

func TestReconcile(t *testing.T) {
	s := newTestServer(t)

	past := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Hour)
	s.repo.PutAppointment(appointment.Appointment{
		ID:              uuid.New(),
		ProID:           s.pro.ID,
		OwnerID:         s.owner.ID,
		AnimalIDs:       []uuid.UUID{s.animal},
		MainSlot:        past,
		DurationMinutes: 60,
		Status:          appointment.StatusConfirmed,
		Comment:         "Dental float",
		Address:         "Ecurie du Parc",
		CreatedAt:       past.Add(-72 * time.Hour),
		UpdatedAt:       past.Add(-72 * time.Hour),
	})

	path := "/appointments/reconcile?pro_id=" + s.pro.ID.String()
	if rec := s.do(t, http.MethodPost, path, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous reconcile: status = %d", rec.Code)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, path, s.proActor(), nil)
			if rec.Code != http.StatusOK {
				t.Errorf("reconcile: status = %d", rec.Code)
				return
			}
			var resp ReconcileResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			mu.Lock()
			total += resp.Transitioned
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Fatalf("expected exactly one transition across concurrent sweeps, got %d", total)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("live: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: status = %d", rec.Code)
	}
	resp := decode[ReadinessResponse](t, rec)
	if resp.Dependencies["postgres"] != "disabled" || resp.Dependencies["redis"] != "disabled" {
		t.Fatalf("unexpected dependencies %v", resp.Dependencies)
	}
}
