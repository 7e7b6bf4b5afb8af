package magstand

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = sql.ErrNoRows

// Store wraps a SQLite database and persists the local post cache along with
// synced settings and the notification inbox.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations. Failure here is fatal for the
// caller: without the store the engine cannot function at all.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for concurrent read/write access, set a busy timeout
	// so writers wait instead of returning SQLITE_BUSY immediately, and tune
	// performance: synchronous=NORMAL is safe with WAL and avoids an fsync
	// per transaction; larger cache and mmap reduce disk I/O.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    slug TEXT NOT NULL DEFAULT '',
    excerpt TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'Uncategorized',
    author TEXT NOT NULL DEFAULT '',
    authorImage TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL DEFAULT '',
    modified TEXT NOT NULL DEFAULT '',
    modified_ts INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL DEFAULT '',
    views INTEGER NOT NULL DEFAULT 0,
    saved INTEGER NOT NULL DEFAULT 0,
    membership_level INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_posts_date ON posts (date DESC);
CREATE INDEX IF NOT EXISTS idx_posts_modified ON posts (modified_ts DESC);
CREATE INDEX IF NOT EXISTS idx_posts_views ON posts (views DESC);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    last_updated TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT '',
    read INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications (created_at DESC);
`)
	return err
}

// UpsertStats reports what a batch upsert actually did. Per-record failures
// never abort the batch; they are counted here and joined into the returned
// error so the caller decides whether to log, retry, or ignore them.
type UpsertStats struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
}

const upsertPostSQL = `
INSERT INTO posts (id, title, slug, excerpt, image, category, author, authorImage,
                   date, modified, modified_ts, content, views, saved, membership_level)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    slug = excluded.slug,
    excerpt = excluded.excerpt,
    image = excluded.image,
    category = excluded.category,
    author = excluded.author,
    authorImage = excluded.authorImage,
    date = excluded.date,
    modified = excluded.modified,
    modified_ts = excluded.modified_ts,
    content = excluded.content,
    views = excluded.views
WHERE excluded.modified_ts > posts.modified_ts
   OR (excluded.modified_ts = posts.modified_ts AND excluded.modified > posts.modified)`

// UpsertBatch merges a batch of normalized posts into the cache.
//
// New ids are inserted with saved=0. Existing rows are overwritten only when
// the incoming modified timestamp is strictly newer; the update never touches
// the saved flag or the membership_level, so both survive every
// remote-triggered overwrite. The admission decision runs inside a single SQL
// statement, which keeps a concurrent SetSaved from being lost between a read
// and a write.
func (s *Store) UpsertBatch(posts []Post) (UpsertStats, error) {
	var stats UpsertStats
	var errs []error
	for _, p := range posts {
		level := p.MembershipLevel
		if level < TierPublic || level > TierPremium {
			// Unassigned tier reaching the store defaults to premium,
			// the most restrictive class.
			level = TierPremium
		}
		var existed bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, p.ID).Scan(&existed); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("post %d: %w", p.ID, err))
			continue
		}
		res, err := s.db.Exec(upsertPostSQL,
			p.ID, p.Title, p.Slug, p.Excerpt, p.Image, p.Category, p.Author, p.AuthorImage,
			p.Date, p.Modified, parseTimestamp(p.Modified), p.Content, p.Views, level)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("post %d: %w", p.ID, err))
			continue
		}
		affected, err := res.RowsAffected()
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("post %d: %w", p.ID, err))
			continue
		}
		switch {
		case affected == 0:
			stats.Skipped++
		case existed:
			stats.Updated++
		default:
			stats.Inserted++
		}
	}
	return stats, errors.Join(errs...)
}

// SetSaved updates the locally-owned saved flag for a post.
// Returns ErrNotFound when the id is not in the cache.
func (s *Store) SetSaved(id int64, saved bool) error {
	val := 0
	if saved {
		val = 1
	}
	res, err := s.db.Exec(`UPDATE posts SET saved = ? WHERE id = ?`, val, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RandomPage returns up to limit posts in random order, re-shuffled on every
// call. Backs the "for you" feed.
func (s *Store) RandomPage(limit int) ([]Post, error) {
	rows, err := s.db.Query(`SELECT id, title, slug, excerpt, image, category, author, authorImage,
		date, modified, content, views, saved, membership_level
		FROM posts ORDER BY RANDOM() LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// Saved returns all posts the user has saved, newest publish date first.
func (s *Store) Saved() ([]Post, error) {
	rows, err := s.db.Query(`SELECT id, title, slug, excerpt, image, category, author, authorImage,
		date, modified, content, views, saved, membership_level
		FROM posts WHERE saved = 1 ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// Trending returns the top limit posts ordered by view count descending.
func (s *Store) Trending(limit int) ([]Post, error) {
	rows, err := s.db.Query(`SELECT id, title, slug, excerpt, image, category, author, authorImage,
		date, modified, content, views, saved, membership_level
		FROM posts ORDER BY views DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ByID returns a single post, or ErrNotFound.
func (s *Store) ByID(id int64) (Post, error) {
	var p Post
	var saved int
	err := s.db.QueryRow(`SELECT id, title, slug, excerpt, image, category, author, authorImage,
		date, modified, content, views, saved, membership_level
		FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Image, &p.Category, &p.Author, &p.AuthorImage,
			&p.Date, &p.Modified, &p.Content, &p.Views, &saved, &p.MembershipLevel)
	if err != nil {
		return Post{}, err
	}
	p.Saved = saved == 1
	return p, nil
}

// Count returns the number of cached posts.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		var p Post
		var saved int
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.Image, &p.Category,
			&p.Author, &p.AuthorImage, &p.Date, &p.Modified, &p.Content, &p.Views,
			&saved, &p.MembershipLevel); err != nil {
			return nil, err
		}
		p.Saved = saved == 1
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
