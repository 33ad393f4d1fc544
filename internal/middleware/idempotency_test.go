package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/numvault/numvault/internal/logging"
)

// setupIdempotentApp wires the middleware in front of a counting handler so
// tests can tell a replayed response from a re-executed one.
func setupIdempotentApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/allocations", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"assignment_id": "a-1", "calls": calls})
	})

	return app, &calls
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupIdempotentApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/allocations", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	app, _ := setupIdempotentApp(t)
	app.Get("/allocations", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/allocations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET without key should pass through, got %d", resp.StatusCode)
	}
}

func TestIdempotencyReplaysWithoutReExecuting(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	post := func() (int, string) {
		req := httptest.NewRequest(fiber.MethodPost, "/allocations", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "retry-1")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode, string(body)
	}

	status1, body1 := post()
	if status1 != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status1)
	}

	status2, body2 := post()
	if status2 != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status2)
	}
	if body2 != body1 {
		t.Fatalf("replayed body differs: %s vs %s", body1, body2)
	}
	if *calls != 1 {
		t.Fatalf("handler executed %d times, want 1", *calls)
	}
}

func TestIdempotencyDistinctKeysExecuteSeparately(t *testing.T) {
	app, calls := setupIdempotentApp(t)

	for _, key := range []string{"key-a", "key-b"} {
		req := httptest.NewRequest(fiber.MethodPost, "/allocations", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, key)
		if _, err := app.Test(req); err != nil {
			t.Fatalf("app.Test: %v", err)
		}
	}

	if *calls != 2 {
		t.Fatalf("handler executed %d times, want 2", *calls)
	}
}
