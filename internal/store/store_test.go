package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
)

type driverCase struct {
	name string
	open func(t *testing.T) Repository
}

func drivers() []driverCase {
	cases := []driverCase{
		{"memory", func(t *testing.T) Repository { return NewMemory() }},
		{"sqlite", func(t *testing.T) Repository {
			repo, err := New(DriverSQLite, WithSQLitePath(filepath.Join(t.TempDir(), "db", "advisor.db")))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return repo
		}},
	}
	if addr := os.Getenv("ADVISOR_TEST_REDIS_ADDR"); addr != "" {
		cases = append(cases, driverCase{"redis", func(t *testing.T) Repository {
			client := redis.NewClient(&redis.Options{Addr: addr})
			return NewRedis(client, time.Minute, nil)
		}})
	}
	return cases
}

func forEachDriver(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Helper()
	for _, d := range drivers() {
		t.Run(d.name, func(t *testing.T) {
			repo := d.open(t)
			t.Cleanup(func() {
				if err := repo.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			})
			fn(t, repo)
		})
	}
}

func uniqueID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestGetOrCreateIsStable(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := uniqueID(t)

		missing, err := repo.Get(ctx, id)
		if err != nil || missing != nil {
			t.Fatalf("expected nil, nil for missing session, got %v, %v", missing, err)
		}

		first, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if first.Version != 1 || first.Artifact.Topic != domain.TopicInitial || len(first.Messages) != 0 {
			t.Fatalf("unexpected new session %+v", first)
		}
		second, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if second.Version != first.Version {
			t.Fatalf("second GetOrCreate bumped version: %d", second.Version)
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := uniqueID(t)

		sess, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		sess.Artifact.EnterDegreePlanning()
		sess.Artifact.Major = "Computer Science"
		sess.Artifact.StartTerm = &domain.Term{Season: domain.SeasonFall, Year: 2024}
		sess.Artifact.PreferredCoursesPerSemester = new(int)
		*sess.Artifact.PreferredCoursesPerSemester = 4
		sess.Artifact.CoursesSelected = []string{"COMP 110"}
		at := time.UnixMilli(time.Now().UnixMilli())
		sess.Messages = append(sess.Messages,
			domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi", CreatedAt: at},
			domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: "hello", CreatedAt: at},
		)

		if err := repo.Save(ctx, sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if sess.Version != 2 {
			t.Fatalf("expected version 2 after save, got %d", sess.Version)
		}

		got, err := repo.Get(ctx, id)
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v, %v", got, err)
		}
		opts := []cmp.Option{
			cmpopts.IgnoreFields(domain.Session{}, "CreatedAt", "UpdatedAt"),
			cmpopts.EquateApproxTime(time.Millisecond),
		}
		if diff := cmp.Diff(sess, got, opts...); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := uniqueID(t)

		a, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		b, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		a.Artifact.Major = "History"
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		b.Artifact.Major = "Biology"
		if err := repo.Save(ctx, b); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
		if b.Version != 1 {
			t.Fatalf("failed save changed version to %d", b.Version)
		}

		got, _ := repo.Get(ctx, id)
		if got.Artifact.Major != "History" {
			t.Fatalf("stale save overwrote data: %q", got.Artifact.Major)
		}
	})
}

func TestSaveRejectsShrinkingLog(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		sess, err := repo.GetOrCreate(ctx, uniqueID(t))
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		sess.Messages = []domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "one"}}
		if err := repo.Save(ctx, sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		sess.Messages = nil
		if err := repo.Save(ctx, sess); !errors.Is(err, ErrMessageLogShrunk) {
			t.Fatalf("expected ErrMessageLogShrunk, got %v", err)
		}
	})
}

func TestSaveNewAndMissingSessions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		fresh := domain.NewSession(uniqueID(t))
		if err := repo.Save(ctx, fresh); err != nil {
			t.Fatalf("saving a new session failed: %v", err)
		}
		if fresh.Version != 1 {
			t.Fatalf("expected version 1, got %d", fresh.Version)
		}
		dup := domain.NewSession(fresh.ID)
		if err := repo.Save(ctx, dup); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict for duplicate create, got %v", err)
		}

		ghost := domain.NewSession(uniqueID(t) + "-ghost")
		ghost.Version = 3
		if err := repo.Save(ctx, ghost); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := uniqueID(t)

		sess, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		sess.Messages = []domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "one"}}
		if err := repo.Save(ctx, sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Delete(ctx, id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, err := repo.Get(ctx, id)
		if err != nil || got != nil {
			t.Fatalf("expected session gone, got %v, %v", got, err)
		}

		again, err := repo.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate after delete failed: %v", err)
		}
		if len(again.Messages) != 0 {
			t.Fatalf("recreated session kept %d messages", len(again.Messages))
		}
		if err := repo.Ping(ctx); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
	})
}

func TestConcurrentGetOrCreate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := uniqueID(t)

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.GetOrCreate(ctx, id); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	})
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := New("postgres"); !errors.Is(err, ErrInvalidStoreType) {
		t.Fatalf("expected ErrInvalidStoreType, got %v", err)
	}
	if _, err := New(DriverSQLite); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for sqlite, got %v", err)
	}
	if _, err := New(DriverRedis); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for redis, got %v", err)
	}
}

func TestSQLiteCleanupExpired(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "advisor.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	if _, err := s.GetOrCreate(ctx, "old"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	n, err := s.CleanupExpired(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing expired, got %d, %v", n, err)
	}
	time.Sleep(5 * time.Millisecond)
	n, err = s.CleanupExpired(ctx, time.Millisecond)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired session, got %d, %v", n, err)
	}
}
