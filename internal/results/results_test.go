package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nvandessel/vpgen/internal/blackbox"
	"github.com/nvandessel/vpgen/internal/patient"
)

func evaluation(failed bool, normalization float64) blackbox.Evaluation {
	cost := blackbox.Cost{
		Normalization: []float64{normalization},
		Transitory:    []float64{0.1},
		Order:         []float64{},
		Modifiers:     []float64{},
	}
	e := blackbox.Evaluation{
		Time:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Assignment: patient.Assignment{"k_f_r_10": 2.5},
		Cost:       cost,
		Objectives: cost.Flatten(),
		Failed:     failed,
		DurationMS: 1.5,
	}
	if failed {
		e.Error = "simulation failed: integrate: integration diverged"
	}
	return e
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.jsonl")
	runID := NewRunID()
	sink, err := NewJSONLSink(path, runID, "chain")
	if err != nil {
		t.Fatalf("NewJSONLSink() error = %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Record(ctx, evaluation(i%2 == 0, float64(i)/10)); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Record(ctx, evaluation(false, 0)); err == nil {
		t.Error("Record() after Close() should fail")
	}

	records, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("ReadJSONL() returned %d records, want 10", len(records))
	}
	for _, r := range records {
		if r.RunID != runID || r.Model != "chain" {
			t.Errorf("record = %+v, want run %s of chain", r, runID)
		}
		if r.Assignment["k_f_r_10"] != 2.5 || len(r.Objectives) != 2 {
			t.Errorf("record payload = %+v", r)
		}
	}
}

func TestJSONLSink_NilSafe(t *testing.T) {
	var s *JSONLSink
	if err := s.Record(context.Background(), evaluation(false, 0)); err != nil {
		t.Errorf("Record() on nil sink error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil sink error = %v", err)
	}
}

func TestReadJSONL_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"run_id\":\"a\"}\n{nope\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSONL(path); err == nil {
		t.Error("ReadJSONL() error = nil, want decode error")
	}
}

// startPostgres starts a Postgres container and returns its DSN. The test is
// skipped in -short mode or when no container runtime is available.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "vpgen",
				"POSTGRES_PASSWORD": "vpgen",
				"POSTGRES_DB":       "vpgen",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://vpgen:vpgen@%s:%s/vpgen?sslmode=disable", host, port.Port())
}

func TestPostgresSink(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()
	runID := uuid.NewString()

	sink, err := NewPostgresSink(ctx, dsn, runID, "chain")
	if err != nil {
		t.Fatalf("NewPostgresSink() error = %v", err)
	}
	defer sink.Close()

	for _, e := range []blackbox.Evaluation{evaluation(true, 100), evaluation(false, 0.2), evaluation(false, 0.4)} {
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	var n int
	if err := sink.DB().QueryRowContext(ctx, `SELECT count(*) FROM evaluations WHERE run_id = $1`, runID).Scan(&n); err != nil {
		t.Fatalf("count evaluations: %v", err)
	}
	if n != 3 {
		t.Errorf("evaluations = %d, want 3", n)
	}

	best, err := sink.Best(ctx)
	if err != nil {
		t.Fatalf("Best() error = %v", err)
	}
	if best.Failed || best.Cost.Normalization[0] != 0.2 {
		t.Errorf("Best() = %+v, want the 0.2 evaluation", best)
	}
	if best.Assignment["k_f_r_10"] != 2.5 {
		t.Errorf("Best().Assignment = %v", best.Assignment)
	}

	// A second sink on the same database reuses the existing table.
	again, err := NewPostgresSink(ctx, dsn, uuid.NewString(), "chain")
	if err != nil {
		t.Fatalf("NewPostgresSink() second open error = %v", err)
	}
	_ = again.Close()
}
