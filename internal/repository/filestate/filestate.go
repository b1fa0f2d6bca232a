// Package filestate keeps reconciler state in plain files:
// watermark_changed_dates.txt, current_sales.json and current_reviews.json.
// Missing or unreadable files load as empty state.
package filestate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/storepulse/reconciler/internal/config"
	"github.com/storepulse/reconciler/internal/domain"
)

const (
	CursorFile  = "watermark_changed_dates.txt"
	SalesFile   = "current_sales.json"
	ReviewsFile = "current_reviews.json"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestate: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) LoadCursor(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path(CursorFile))
	if err != nil {
		return domain.ZeroCursor, nil
	}
	line, _, _ := strings.Cut(string(data), "\n")
	if cursor := strings.TrimSpace(line); cursor != "" {
		return cursor, nil
	}
	return domain.ZeroCursor, nil
}

func (s *Store) LoadLedger(_ context.Context) (domain.Ledger, error) {
	var raw map[string]map[string]domain.SalesRecord
	if !s.readJSON(SalesFile, &raw) {
		return make(domain.Ledger), nil
	}

	ledger := make(domain.Ledger, len(raw))
	for appID, days := range raw {
		if days == nil {
			continue
		}
		clean := make(domain.DailySales, len(days))
		for date, rec := range days {
			if rec.AppID == "" {
				rec.AppID = appID
			}
			valid, err := domain.NewSalesRecord(rec.AppID, rec.GrossUnits, rec.NetUnits, rec.NetSales)
			if err != nil {
				config.Logger("filestate").Warnf("skipping %s/%s: %v", appID, date, err)
				continue
			}
			clean[date] = valid
		}
		ledger[appID] = clean
	}
	return ledger, nil
}

// CommitSales writes the ledger before the cursor. A crash in between leaves
// the old cursor, and replaying its dates is harmless because day records
// are replaced rather than summed.
func (s *Store) CommitSales(_ context.Context, ledger domain.Ledger, cursor string) error {
	if err := s.writeJSON(SalesFile, ledger); err != nil {
		return err
	}
	return s.writeFile(CursorFile, []byte(cursor))
}

func (s *Store) LoadReviews(_ context.Context) (domain.ReviewCache, error) {
	var cache domain.ReviewCache
	if !s.readJSON(ReviewsFile, &cache) || cache == nil {
		return make(domain.ReviewCache), nil
	}
	return cache, nil
}

func (s *Store) SaveReviews(_ context.Context, cache domain.ReviewCache) error {
	return s.writeJSON(ReviewsFile, cache)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) readJSON(name string, out any) bool {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		config.Logger("filestate").WithField("file", name).Warnf("ignoring unreadable state: %v", err)
		return false
	}
	return true
}

func (s *Store) writeJSON(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("filestate: encode %s: %w", name, err)
	}
	return s.writeFile(name, data)
}

// writeFile replaces name atomically via a temp file in the same directory.
func (s *Store) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestate: temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestate: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestate: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestate: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("filestate: rename %s: %w", name, err)
	}
	return nil
}
