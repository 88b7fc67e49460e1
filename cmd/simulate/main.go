package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/api"
	"github.com/hackgods/equine-appointment-scheduling/internal/config"
	"github.com/hackgods/equine-appointment-scheduling/internal/db"
	"github.com/hackgods/equine-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	AcceptRatio  float64
	ReadRatio    float64
	ProLimit     int
	OwnerLimit   int
	DaysAhead    int
	PostgresDSN  string
}

type professional struct {
	ID       uuid.UUID
	Lat, Lng *float64
}

type ownerAnimal struct {
	OwnerID  uuid.UUID
	AnimalID uuid.UUID
}

type booking struct {
	ID    uuid.UUID
	ProID uuid.UUID
}

type DataPool struct {
	Pros   []professional
	Owners []ownerAnimal

	mu       sync.RWMutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return at(50), at(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking      OperationMetrics
	Accept       OperationMetrics
	Availability OperationMetrics
	List         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	logger := logging.New(getEnv("APP_ENV", "dev"), "info", "simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("accept", cfg.AcceptRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("pros", len(dataPool.Pros)).Int("owners", len(dataPool.Owners)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		AcceptRatio:  getFloat("SIM_ACCEPT_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		ProLimit:     getInt("SIM_PRO_LIMIT", 5),
		OwnerLimit:   getInt("SIM_OWNER_LIMIT", 2000),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 7),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead < 1 {
		return SimConfig{}, fmt.Errorf("SIM_DAYS_AHEAD must be >= 1")
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.AcceptRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.AcceptRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, nil
}

// loadDataPool keeps the professional set small so that owners compete for
// the same slots.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id, lat, lng FROM professionals ORDER BY created_at LIMIT $1`, cfg.ProLimit)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	for rows.Next() {
		var p professional
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Pros = append(dataPool.Pros, p)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT DISTINCT ON (o.id) o.id, a.id
		FROM owners o JOIN animals a ON a.owner_id = o.id
		LIMIT $1
	`, cfg.OwnerLimit)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	for rows.Next() {
		var oa ownerAnimal
		if err := rows.Scan(&oa.OwnerID, &oa.AnimalID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Owners = append(dataPool.Owners, oa)
	}
	rows.Close()

	if len(dataPool.Pros) == 0 {
		return nil, fmt.Errorf("no professionals loaded, run cmd/seed first")
	}
	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no owners with animals loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.AcceptRatio:
			s.doAccept(ctx, rng)
		case rng.Intn(2) == 0:
			s.doAvailability(ctx, rng)
		default:
			s.doList(ctx, rng)
		}
	}
}

// randomDay picks a UTC date between tomorrow and DaysAhead days out.
func (s *Simulator) randomDay(rng *rand.Rand) time.Time {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
}

// doBooking reads the agenda of a professional and races for one of the
// free slots. Losing the race shows up as a conflict.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	pro := s.pool.Pros[rng.Intn(len(s.pool.Pros))]
	owner := s.pool.Owners[rng.Intn(len(s.pool.Owners))]

	var avail api.AvailabilityResponse
	path := fmt.Sprintf("/professionals/%s/availability?date=%s", pro.ID, s.randomDay(rng).Format("2006-01-02"))
	if _, err := s.call(ctx, http.MethodGet, path, nil, nil, &avail); err != nil {
		return
	}

	var free []time.Time
	for _, sl := range avail.Slots {
		if !sl.IsBooked {
			free = append(free, sl.Start)
		}
	}
	if len(free) == 0 {
		return
	}

	body := api.CreateAppointmentRequest{
		ProID:      pro.ID.String(),
		AnimalIDs:  []string{owner.AnimalID.String()},
		MainSlot:   free[rng.Intn(len(free))],
		Comment:    "Routine check-up",
		Address:    "Simulated stable",
		AddressLat: pro.Lat,
		AddressLng: pro.Lng,
	}

	actor := &identity{ID: owner.OwnerID, Role: "OWNER"}
	var created api.AppointmentResponse

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", actor, body, &created)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddBooking(booking{ID: created.ID, ProID: pro.ID})
	}
}

func (s *Simulator) doAccept(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	actor := &identity{ID: b.ProID, Role: "PRO"}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+b.ID.String()+"/transitions", actor,
		api.TransitionRequest{Action: "accept"}, nil)
	s.metrics.Accept.Record(time.Since(start), status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	pro := s.pool.Pros[rng.Intn(len(s.pool.Pros))]
	path := fmt.Sprintf("/professionals/%s/availability?date=%s", pro.ID, s.randomDay(rng).Format("2006-01-02"))

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, path, nil, nil, nil)
	s.metrics.Availability.Record(time.Since(start), status, err)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	owner := s.pool.Owners[rng.Intn(len(s.pool.Owners))]
	actor := &identity{ID: owner.OwnerID, Role: "OWNER"}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments?limit=20", actor, nil, nil)
	s.metrics.List.Record(time.Since(start), status, err)
}

type identity struct {
	ID   uuid.UUID
	Role string
}

func (s *Simulator) call(ctx context.Context, method, path string, who *identity, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set(api.HeaderUserID, who.ID.String())
		req.Header.Set(api.HeaderUserRole, who.Role)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Accept", &s.metrics.Accept)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("List", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	p50, p95, max := om.Percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: p50=%s p95=%s max=%s\n\n",
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
