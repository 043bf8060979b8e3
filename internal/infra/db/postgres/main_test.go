//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// LEDGER_TEST_DATABASE_URL points the suite at an existing database; without
// it a throwaway postgres container is started.
const envTestURL = "LEDGER_TEST_DATABASE_URL"

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runSuite(m))
}

func runSuite(m *testing.M) int {
	ctx := context.Background()

	url := os.Getenv(envTestURL)
	if url == "" {
		id, dsn, err := startPostgres()
		if err != nil {
			log.Printf("start postgres container: %v (is docker running?)", err)
			return 1
		}
		defer func() {
			if err := exec.Command("docker", "stop", id).Run(); err != nil {
				log.Printf("stop container %s: %v", id, err)
			}
		}()
		url = dsn
	}

	pool, err := connectWithRetry(ctx, url, 15, 2*time.Second)
	if err != nil {
		log.Printf("connect to test database: %v", err)
		return 1
	}
	defer pool.Close()
	testPool = pool

	if err := EnsureSchema(ctx, testPool); err != nil {
		log.Printf("apply schema: %v", err)
		return 1
	}
	return m.Run()
}

func startPostgres() (id, dsn string, err error) {
	const (
		db   = "ledger"
		user = "ledger"
		pass = "ledger"
		port = "55432"
	)
	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", port+":5432",
		"-e", "POSTGRES_DB="+db,
		"-e", "POSTGRES_USER="+user,
		"-e", "POSTGRES_PASSWORD="+pass,
		"postgres:14",
	).Output()
	if err != nil {
		return "", "", err
	}
	id = strings.TrimSpace(string(out))
	if len(id) > 12 {
		id = id[:12]
	}
	return id, fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", user, pass, port, db), nil
}

func connectWithRetry(ctx context.Context, url string, tries int, wait time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for i := 0; i < tries; i++ {
		pool, err := pgxpool.Connect(ctx, url)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("after %d attempts: %w", tries, lastErr)
}

func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE activation_attempts`); err != nil {
		t.Fatalf("truncate ledger: %v", err)
	}
}
