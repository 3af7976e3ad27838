package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := OpenDB(config.DBConfig{Path: path}, zap.NewNop(), zap.NewAtomicLevelAt(zap.ErrorLevel))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = CloseDB(db) })
	return db
}

func newTestRepo(t *testing.T) (LinkRepository, *fakeClock, *gorm.DB) {
	t.Helper()
	db := openTestDB(t, filepath.Join(t.TempDir(), "urls.sqlite"))
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return NewLinkRepository(db, clock.Now, 5*time.Second), clock, db
}

func TestInsertAndFind(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	expiry, err := repo.Insert(ctx, "test1", "https://example-test1.com", 10)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if want := clock.Now().Unix() + 10; expiry != want {
		t.Errorf("expiry = %d, want %d", expiry, want)
	}

	link, err := repo.Find(ctx, "test1")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if link.LongURL != "https://example-test1.com" || link.Hits != 0 || link.ExpiryTime != expiry {
		t.Errorf("Find() = %+v", link)
	}

	expiry, err = repo.Insert(ctx, "forever", "https://example.com", 0)
	if err != nil || expiry != 0 {
		t.Errorf("Insert(delay 0) = %d, %v; want 0, nil", expiry, err)
	}

	if _, err := repo.Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInsertConflictOnLiveSlug(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "taken", "https://a.example", 10); err != nil {
		t.Fatal(err)
	}
	clock.Advance(9 * time.Second)
	if _, err := repo.Insert(ctx, "taken", "https://b.example", 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("Insert() error = %v, want ErrConflict", err)
	}

	if _, err := repo.Insert(ctx, "never", "https://a.example", 0); err != nil {
		t.Fatal(err)
	}
	clock.Advance(365 * 24 * time.Hour)
	if _, err := repo.Insert(ctx, "never", "https://b.example", 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("Insert() over non-expiring link error = %v, want ErrConflict", err)
	}
}

func TestInsertReclaimsExpiredSlug(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "short", "https://old.example", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ResolveAndHit(ctx, "short"); err != nil {
		t.Fatal(err)
	}
	before, _ := repo.List(ctx, ListParams{})

	// 恰好到达 expiry_time 时已过期
	clock.Advance(10 * time.Second)
	expiry, err := repo.Insert(ctx, "short", "https://new.example", 60)
	if err != nil {
		t.Fatalf("Insert() reclaim error = %v", err)
	}
	if want := clock.Now().Unix() + 60; expiry != want {
		t.Errorf("expiry = %d, want %d", expiry, want)
	}

	link, err := repo.Find(ctx, "short")
	if err != nil {
		t.Fatal(err)
	}
	if link.LongURL != "https://new.example" || link.Hits != 0 || link.ExpiryTime != expiry {
		t.Errorf("reclaimed link = %+v", link)
	}
	if len(before) != 1 || link.ID != before[0].ID {
		t.Errorf("reclaimed link id = %d, want %d", link.ID, before[0].ID)
	}
}

func TestConcurrentInsertSameSlug(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Insert(ctx, "race", fmt.Sprintf("https://%d.example", i), 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("Insert() unexpected error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Errorf("successes = %d, conflicts = %d", successes, conflicts)
	}
}

func TestResolveAndHit(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "hit", "https://hit.example", 5); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		longURL, err := repo.ResolveAndHit(ctx, "hit")
		if err != nil || longURL != "https://hit.example" {
			t.Fatalf("ResolveAndHit() = %q, %v", longURL, err)
		}
		link, _ := repo.Find(ctx, "hit")
		if link.Hits != int64(i) {
			t.Fatalf("hits = %d, want %d", link.Hits, i)
		}
	}

	clock.Advance(5 * time.Second)
	if _, err := repo.ResolveAndHit(ctx, "hit"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResolveAndHit(expired) error = %v, want ErrNotFound", err)
	}
	clock.Advance(-time.Second)
	link, _ := repo.Find(ctx, "hit")
	if link.Hits != 3 {
		t.Errorf("expired resolve changed hits to %d", link.Hits)
	}

	if _, err := repo.ResolveAndHit(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveAndHit(missing) error = %v", err)
	}
}

func TestConcurrentResolveCountsEveryHit(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "busy", "https://busy.example", 0); err != nil {
		t.Fatal(err)
	}

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ResolveAndHit(ctx, "busy"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("ResolveAndHit() error = %v", err)
	}
	link, err := repo.Find(ctx, "busy")
	if err != nil {
		t.Fatal(err)
	}
	if link.Hits != workers {
		t.Errorf("hits = %d, want %d", link.Hits, workers)
	}
}

func TestEdit(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	expiry, err := repo.Insert(ctx, "edit", "https://before.example", 100)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = repo.ResolveAndHit(ctx, "edit")

	if err := repo.Edit(ctx, "edit", "https://after.example", false); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	link, _ := repo.Find(ctx, "edit")
	if link.LongURL != "https://after.example" || link.Hits != 1 || link.ExpiryTime != expiry || link.ShortURL != "edit" {
		t.Errorf("after edit = %+v", link)
	}

	if err := repo.Edit(ctx, "edit", "https://again.example", true); err != nil {
		t.Fatal(err)
	}
	link, _ = repo.Find(ctx, "edit")
	if link.Hits != 0 {
		t.Errorf("hits = %d after reset", link.Hits)
	}

	if err := repo.Edit(ctx, "ghost", "https://x.example", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Edit(missing) error = %v, want ErrNotFound", err)
	}

	clock.Advance(100 * time.Second)
	if err := repo.Edit(ctx, "edit", "https://x.example", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Edit(expired) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "gone", "https://gone.example", 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)

	// 过期记录同样可以删除
	if err := repo.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func slugs(links []model.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ShortURL)
	}
	return out
}

func equalSlugs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestList(t *testing.T) {
	repo, clock, _ := newTestRepo(t)
	ctx := context.Background()

	var live []string
	for i := 0; i < 25; i++ {
		slug := fmt.Sprintf("link%02d", i)
		delay := int64(0)
		if i%5 == 0 {
			delay = 30
		} else {
			live = append(live, slug)
		}
		if _, err := repo.Insert(ctx, slug, "https://example.com/"+slug, delay); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(30 * time.Second)

	all, err := repo.List(ctx, ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if !equalSlugs(slugs(all), live) {
		t.Fatalf("List() = %v, want %v", slugs(all), live)
	}

	t.Run("offset pages concatenate to full list", func(t *testing.T) {
		for _, size := range []int{1, 3, 7, 20, 50} {
			var joined []string
			for page := 1; ; page++ {
				links, err := repo.List(ctx, ListParams{PageNo: page, PageSize: size})
				if err != nil {
					t.Fatal(err)
				}
				if len(links) == 0 {
					break
				}
				joined = append(joined, slugs(links)...)
			}
			if !equalSlugs(joined, live) {
				t.Errorf("size %d: pages = %v, want %v", size, joined, live)
			}
		}
	})

	t.Run("page number defaults size to 10", func(t *testing.T) {
		links, _ := repo.List(ctx, ListParams{PageNo: 2})
		if !equalSlugs(slugs(links), live[10:20]) {
			t.Errorf("page 2 = %v", slugs(links))
		}
	})

	t.Run("cursor", func(t *testing.T) {
		links, _ := repo.List(ctx, ListParams{PageAfter: live[2], PageSize: 4})
		if !equalSlugs(slugs(links), live[3:7]) {
			t.Errorf("after %s = %v", live[2], slugs(links))
		}

		var joined []string
		cursor := ""
		for {
			links, err := repo.List(ctx, ListParams{PageAfter: cursor, PageSize: 6})
			if err != nil {
				t.Fatal(err)
			}
			if len(links) == 0 {
				break
			}
			joined = append(joined, slugs(links)...)
			cursor = links[len(links)-1].ShortURL
		}
		if !equalSlugs(joined, live) {
			t.Errorf("cursor walk = %v", joined)
		}
	})

	t.Run("cursor takes precedence over page number", func(t *testing.T) {
		links, _ := repo.List(ctx, ListParams{PageAfter: live[0], PageNo: 3, PageSize: 2})
		if !equalSlugs(slugs(links), live[1:3]) {
			t.Errorf("got %v", slugs(links))
		}
	})

	t.Run("unknown cursor returns empty", func(t *testing.T) {
		links, err := repo.List(ctx, ListParams{PageAfter: "nothing"})
		if err != nil || len(links) != 0 {
			t.Errorf("got %v, %v", slugs(links), err)
		}
	})

	t.Run("page number past int range returns empty", func(t *testing.T) {
		links, err := repo.List(ctx, ListParams{PageNo: math.MaxInt/10 + 2, PageSize: 10})
		if err != nil || len(links) != 0 {
			t.Errorf("got %v, %v", slugs(links), err)
		}
		links, err = repo.List(ctx, ListParams{PageNo: math.MaxInt})
		if err != nil || len(links) != 0 {
			t.Errorf("got %v, %v", slugs(links), err)
		}
	})

	t.Run("size only", func(t *testing.T) {
		links, _ := repo.List(ctx, ListParams{PageSize: 5})
		if !equalSlugs(slugs(links), live[:5]) {
			t.Errorf("got %v", slugs(links))
		}
	})
}

func TestOpenDBAppliesPragmasToEveryConnection(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "urls.sqlite"))
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// 不保留空闲连接，每次查询都会拿到新连接
	sqlDB.SetMaxIdleConns(0)

	for i := 0; i < 3; i++ {
		var busyTimeout, synchronous int
		var journalMode string
		if err := db.Raw("PRAGMA busy_timeout").Scan(&busyTimeout).Error; err != nil {
			t.Fatal(err)
		}
		if err := db.Raw("PRAGMA synchronous").Scan(&synchronous).Error; err != nil {
			t.Fatal(err)
		}
		if err := db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
			t.Fatal(err)
		}
		if busyTimeout != 5000 || synchronous != 1 || journalMode != "wal" {
			t.Errorf("connection %d: busy_timeout = %d, synchronous = %d, journal_mode = %q",
				i, busyTimeout, synchronous, journalMode)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("urls.sqlite"); !strings.HasPrefix(got, "urls.sqlite?_pragma=journal_mode(WAL)&") {
		t.Errorf("sqliteDSN() = %q", got)
	}
	if got := sqliteDSN("file:urls.sqlite?cache=shared"); !strings.HasPrefix(got, "file:urls.sqlite?cache=shared&_pragma=") {
		t.Errorf("sqliteDSN() = %q", got)
	}
}

func TestSweep(t *testing.T) {
	repo, clock, db := newTestRepo(t)
	ctx := context.Background()

	for slug, delay := range map[string]int64{"a": 0, "b": 10, "c": 20, "d": 30} {
		if _, err := repo.Insert(ctx, slug, "https://example.com", delay); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := repo.Sweep(ctx, clock.Now().Unix()+20)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	var remaining []string
	if err := db.Model(&model.Link{}).Order("short_url").Pluck("short_url", &remaining).Error; err != nil {
		t.Fatal(err)
	}
	if !equalSlugs(remaining, []string{"a", "d"}) {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestMigrateLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.sqlite")

	legacy, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE urls (id INTEGER PRIMARY KEY AUTOINCREMENT, long_url TEXT NOT NULL, short_url TEXT NOT NULL, hits INTEGER NOT NULL)`,
		`INSERT INTO urls (long_url, short_url, hits) VALUES ('https://old.example', 'old', 7)`,
	}
	for _, stmt := range stmts {
		if err := legacy.Exec(stmt).Error; err != nil {
			t.Fatal(err)
		}
	}
	sqlDB, _ := legacy.DB()
	_ = sqlDB.Close()

	db := openTestDB(t, path)
	m := db.Migrator()
	if !m.HasColumn(&model.Link{}, "ExpiryTime") {
		t.Fatal("expiry_time column not added")
	}
	for _, index := range []string{"idx_short_url", "idx_expiry_time"} {
		if !m.HasIndex(&model.Link{}, index) {
			t.Errorf("index %s missing", index)
		}
	}
	if version, err := SchemaVersion(db); err != nil || version != schemaVersion {
		t.Errorf("SchemaVersion() = %d, %v", version, err)
	}

	repo := NewLinkRepository(db, nil, 0)
	link, err := repo.Find(context.Background(), "old")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if link.ExpiryTime != 0 || link.Hits != 7 {
		t.Errorf("migrated link = %+v", link)
	}

	// 再次迁移不应报错
	if err := Migrate(db); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}
