package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"github.com/hackgods/clinic-admin/internal/config"
	"github.com/hackgods/clinic-admin/internal/db"
	"github.com/hackgods/clinic-admin/internal/timefmt"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Token        string // admin session token, sent as a bearer
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	RaceSize     int // concurrent identical bookings fired by the race probe, 0 to skip
	DaysAhead    int
	ClientLimit  int
	PostgresDSN  string
	Location     *time.Location
}

// pairing is a client together with the therapist they are assigned to.
type pairing struct {
	ClientID    uuid.UUID
	TherapistID uuid.UUID
}

type DataPool struct {
	Pairings     []pairing
	Therapists   []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) TakeAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.appointments))
	id := dp.appointments[idx]
	dp.appointments[idx] = dp.appointments[len(dp.appointments)-1]
	dp.appointments = dp.appointments[:len(dp.appointments)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	DayView  OperationMetrics
	WeekView OperationMetrics
	List     OperationMetrics
}

// RaceResult is the outcome of firing identical bookings at once. Exactly
// one of them may be created.
type RaceResult struct {
	Fired    int
	Created  int64
	Rejected int64
	Errors   int64
}

func (r RaceResult) OK() bool { return r.Created == 1 && r.Errors == 0 }

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	cfg, baseCfg := loadConfig()
	logger := logging.New(baseCfg.LogLevel).With("service", "simulate")
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulator starting", "duration", cfg.Duration, "workers", cfg.Workers,
		"booking", cfg.BookingRatio, "cancel", cfg.CancelRatio, "read", cfg.ReadRatio, "race_size", cfg.RaceSize)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Error("load data pool", "error", err)
		os.Exit(1)
	}
	logger.Info("data pool loaded", "pairings", len(dataPool.Pairings), "therapists", len(dataPool.Therapists))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	var race *RaceResult
	if cfg.RaceSize > 0 {
		res := sim.Race(context.Background())
		race = &res
	}
	sim.Run()
	sim.PrintReport(race)

	if race != nil && !race.OK() {
		os.Exit(2)
	}
}

func loadConfig() (SimConfig, config.Config) {
	baseCfg, err := config.Load()
	if err != nil {
		logging.Default().Error("failed to load base config", "error", err)
		os.Exit(1)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Token:        os.Getenv("SIM_TOKEN"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.5),
		RaceSize:     getInt("SIM_RACE_SIZE", 20),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		ClientLimit:  getInt("SIM_CLIENT_LIMIT", 2000),
		PostgresDSN:  baseCfg.PostgresDSN,
		Location:     baseCfg.Location,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, baseCfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Token == "" {
		return errors.New("SIM_TOKEN is required, sign in and pass the session token")
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

// loadDataPool reads clients whose membership is still running, paired with
// their assigned active therapist.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}
	today := timefmt.Today(time.Now(), cfg.Location)

	rows, err := pool.Query(ctx, `
		SELECT c.id, c.therapist_id
		FROM clients c
		JOIN therapists t ON t.id = c.therapist_id
		WHERE t.is_active AND (c.expiry_date IS NULL OR c.expiry_date >= $1)
		LIMIT $2
	`, today, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]bool)
	for rows.Next() {
		var p pairing
		if err := rows.Scan(&p.ClientID, &p.TherapistID); err != nil {
			return nil, err
		}
		dataPool.Pairings = append(dataPool.Pairings, p)
		if !seen[p.TherapistID] {
			seen[p.TherapistID] = true
			dataPool.Therapists = append(dataPool.Therapists, p.TherapistID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Pairings) == 0 {
		return nil, errors.New("no bookable clients loaded, run the seed tool first")
	}
	return dataPool, nil
}

// Race fires RaceSize identical bookings at the same instant and counts how
// many the API accepted.
func (s *Simulator) Race(ctx context.Context) RaceResult {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var (
		p    pairing
		date time.Time
		body []byte
	)
	// Start from a free slot so rejections in the burst come from the race
	// and not from an existing booking.
	for attempt := 0; attempt < 10; attempt++ {
		p = s.pool.Pairings[rng.Intn(len(s.pool.Pairings))]
		date = timefmt.AddDays(timefmt.Today(time.Now(), s.config.Location), s.config.DaysAhead+rng.Intn(30))
		body = bookingBody(p, date, fmt.Sprintf("%02d:%02d", 9+rng.Intn(7), 15*rng.Intn(4)))
		if s.bookable(ctx, body) {
			break
		}
	}

	res := RaceResult{Fired: s.config.RaceSize}
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.RaceSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := s.do(ctx, http.MethodPost, "/appointments", body)
			if err != nil {
				atomic.AddInt64(&res.Errors, 1)
				return
			}
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&res.Created, 1)
				if id, ok := decodeID(resp); ok {
					s.pool.AddAppointment(id)
				}
			case http.StatusConflict:
				atomic.AddInt64(&res.Rejected, 1)
			default:
				atomic.AddInt64(&res.Errors, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.logger.Info("race probe finished", "client_id", p.ClientID, "therapist_id", p.TherapistID,
		"date", timefmt.DateKey(date), "fired", res.Fired, "created", res.Created, "rejected", res.Rejected, "errors", res.Errors)
	return res
}

func (s *Simulator) bookable(ctx context.Context, body []byte) bool {
	resp, err := s.do(ctx, http.MethodPost, "/appointments/check", body)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var check struct {
		OK bool `json:"ok"`
	}
	return json.NewDecoder(resp.Body).Decode(&check) == nil && check.OK
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting load", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("load complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doRead(ctx, &s.metrics.DayView, "/schedule/day?date="+s.randomDateKey(rng))
			case 1:
				s.doRead(ctx, &s.metrics.WeekView, "/schedule/week?date="+s.randomDateKey(rng))
			case 2:
				therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
				s.doRead(ctx, &s.metrics.List, "/appointments?therapist_id="+therapistID.String())
			}
		}
	}
}

func (s *Simulator) randomDateKey(rng *rand.Rand) string {
	today := timefmt.Today(time.Now(), s.config.Location)
	return timefmt.DateKey(timefmt.AddDays(today, rng.Intn(s.config.DaysAhead)))
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Pairings[rng.Intn(len(s.pool.Pairings))]
	date, _ := timefmt.ParseDateKey(s.randomDateKey(rng))
	clock := fmt.Sprintf("%02d:%02d", 9+rng.Intn(7), 15*rng.Intn(4))

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", bookingBody(p, date, clock))
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			if id, ok := decodeID(resp); ok {
				s.pool.AddAppointment(id)
			}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			conflict = true
		}
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.TakeAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/cancel", nil)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doRead(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

func bookingBody(p pairing, date time.Time, clock string) []byte {
	body, _ := json.Marshal(map[string]string{
		"client_id":    p.ClientID.String(),
		"therapist_id": p.TherapistID.String(),
		"date":         timefmt.DateKey(date),
		"time":         clock,
	})
	return body
}

func decodeID(resp *http.Response) (uuid.UUID, bool) {
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return created.ID, true
}

func (s *Simulator) PrintReport(race *RaceResult) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if race != nil {
		verdict := "PASS"
		if !race.OK() {
			verdict = "FAIL"
		}
		fmt.Println("Double-booking probe:")
		fmt.Printf("  Fired: %d  Created: %d  Rejected: %d  Errors: %d  [%s]\n",
			race.Fired, race.Created, race.Rejected, race.Errors, verdict)
		fmt.Println()
	}

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Day view", &s.metrics.DayView)
	printOperationReport("Week view", &s.metrics.WeekView)
	printOperationReport("List by therapist", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
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
