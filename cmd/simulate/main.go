package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Duration     time.Duration `envconfig:"DURATION" default:"30s"`
	Workers      int           `envconfig:"WORKERS" default:"10"`
	BookingRatio float64       `envconfig:"BOOKING_RATIO" default:"0.7"`
	ReadRatio    float64       `envconfig:"READ_RATIO" default:"0.3"`
	SlotLimit    int           `envconfig:"SLOT_LIMIT" default:"50"` // small pool, many collisions
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
}

type slotRef struct {
	DoctorID   string
	DoctorName string
	Date       string
	Time       string
}

func (s slotRef) key() string {
	return s.DoctorID + "|" + s.Date + "|" + s.Time
}

type DataPool struct {
	Doctors []string
	Slots   []slotRef

	mu        sync.Mutex
	confirmed map[string]int // slot key -> 201 responses seen
}

func (dp *DataPool) RecordConfirmed(s slotRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.confirmed[s.key()]++
}

// DoubleBooked returns the slots the API confirmed more than once.
func (dp *DataPool) DoubleBooked() map[string]int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	out := make(map[string]int)
	for k, n := range dp.confirmed {
		if n > 1 {
			out[k] = n
		}
	}
	return out
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
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
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

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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
	Booking          OperationMetrics
	Availability     OperationMetrics
	ListAppointments OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	var cfg SimConfig
	if err := envconfig.Process("SIM", &cfg); err != nil {
		logging.Bootstrap().Fatal().Err(err).Msg("invalid config")
	}
	logger := logging.New("dev", cfg.LogLevel)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	normalizeRatios(&cfg)

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = pool
	logger.Info().Int("doctors", len(pool.Doctors)).Int("slots", len(pool.Slots)).Msg("data pool loaded")

	sim.Run()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	ledgerDupes, err := sim.ledgerDoubleBookings(ctx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("ledger check failed")
	}

	if !sim.PrintReport(ledgerDupes) {
		os.Exit(1)
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotLimit <= 0 {
		return fmt.Errorf("SIM_SLOT_LIMIT must be > 0")
	}
	return nil
}

func normalizeRatios(cfg *SimConfig) {
	total := cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}
}

// loadDataPool collects open slots through the public API, up to SlotLimit.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var doctors []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := s.getJSON(ctx, "/api/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	pool := &DataPool{confirmed: make(map[string]int)}
	for _, d := range doctors {
		pool.Doctors = append(pool.Doctors, d.ID)
		if len(pool.Slots) >= s.config.SlotLimit {
			continue
		}

		var avail struct {
			Availability []struct {
				Date string `json:"date"`
				Time string `json:"time"`
			} `json:"availability"`
		}
		if err := s.getJSON(ctx, "/api/doctors/"+url.PathEscape(d.ID)+"/availability", &avail); err != nil {
			return nil, fmt.Errorf("availability for %s: %w", d.ID, err)
		}
		for _, a := range avail.Availability {
			if len(pool.Slots) >= s.config.SlotLimit {
				break
			}
			pool.Slots = append(pool.Slots, slotRef{DoctorID: d.ID, DoctorName: d.Name, Date: a.Date, Time: a.Time})
		}
	}

	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded, run the seed first")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
				continue
			}
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doListAppointments(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body, _ := json.Marshal(map[string]string{
		"doctor_id":     slot.DoctorID,
		"date":          slot.Date,
		"time":          slot.Time,
		"patient_email": gofakeit.Email(),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/book", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.Booking.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode == http.StatusCreated
	if success {
		s.pool.RecordConfirmed(slot)
	}
	s.metrics.Booking.Record(latency, success, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	s.timedGet(ctx, &s.metrics.Availability, "/api/doctors/"+url.PathEscape(doctorID)+"/availability")
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	s.timedGet(ctx, &s.metrics.ListAppointments, "/api/appointments?limit=20&offset=0&doctor_id="+url.QueryEscape(doctorID))
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()
	om.Record(latency, resp.StatusCode == http.StatusOK, false)
}

// ledgerDoubleBookings reads the appointment ledger of every doctor in the pool and returns
// the slots with more than one appointment.
func (s *Simulator) ledgerDoubleBookings(ctx context.Context) (map[string]int, error) {
	type appointment struct {
		DoctorID string `json:"doctor_id"`
		Date     string `json:"date"`
		Time     string `json:"time"`
	}

	counts := make(map[string]int)
	seen := make(map[string]bool)
	for _, slot := range s.pool.Slots {
		if seen[slot.DoctorID] {
			continue
		}
		seen[slot.DoctorID] = true

		for offset := 0; ; offset += 100 {
			var page []appointment
			path := fmt.Sprintf("/api/appointments?limit=100&offset=%d&doctor_id=%s", offset, url.QueryEscape(slot.DoctorID))
			if err := s.getJSON(ctx, path, &page); err != nil {
				return nil, err
			}
			for _, a := range page {
				counts[slotRef{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}.key()]++
			}
			if len(page) < 100 {
				break
			}
		}
	}

	dupes := make(map[string]int)
	for k, n := range counts {
		if n > 1 {
			dupes[k] = n
		}
	}
	return dupes, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PrintReport prints the run summary and reports whether no slot was booked twice.
func (s *Simulator) PrintReport(ledgerDupes map[string]int) bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slot pool: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("List appointments", &s.metrics.ListAppointments)

	apiDupes := s.pool.DoubleBooked()
	ok := len(apiDupes) == 0 && len(ledgerDupes) == 0

	fmt.Println("Double booking check:")
	fmt.Printf("  Confirmed twice by the API: %d\n", len(apiDupes))
	for k, n := range apiDupes {
		fmt.Printf("    %s -> %d confirmations\n", k, n)
	}
	fmt.Printf("  Recorded twice in the ledger: %d\n", len(ledgerDupes))
	for k, n := range ledgerDupes {
		fmt.Printf("    %s -> %d appointments\n", k, n)
	}
	if ok {
		fmt.Println("  PASS: every slot was confirmed at most once")
	} else {
		fmt.Println("  FAIL: double bookings detected")
	}
	return ok
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
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
