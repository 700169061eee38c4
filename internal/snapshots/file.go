package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"servicehub/internal/domain"
)

// fileTimeLayout is fixed width so directory listings sort chronologically.
const fileTimeLayout = "20060102T150405.000000000Z"

// FileStore writes one JSON file per document under Dir. Files are written
// atomically and never rewritten.
type FileStore struct {
	Dir string
	mu  *sync.Mutex
}

func NewFileStore(dir string) (FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return FileStore{}, fmt.Errorf("snapshots dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileStore{}, fmt.Errorf("create snapshots dir: %w", err)
	}
	return FileStore{Dir: dir, mu: &sync.Mutex{}}, nil
}

func resolveDir(workspace, dir string) string {
	if dir == "" {
		dir = filepath.Join(".servicehub", "snapshots")
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dir)
}

func safeSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return domain.Invalid("id", fmt.Sprintf("%q cannot be used as a document key", s))
	}
	return nil
}

func (f FileStore) write(dir string, ts string, id string, body any) error {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return domain.StoreError{Op: "encode document", Err: err}
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := safeSegment(id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.StoreError{Op: "create document dir", Err: err}
	}
	path := filepath.Join(dir, ts+"_"+id+".json")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return domain.StoreError{Op: "write document", Err: err}
	}
	return nil
}

// newest returns document paths in dir, newest first.
func newest(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func (f FileStore) AppendHealthRecord(_ context.Context, rec domain.HealthRecord) error {
	if err := safeSegment(rec.ProjectID); err != nil {
		return err
	}
	dir := filepath.Join(f.Dir, collectionHealth, rec.ProjectID)
	return f.write(dir, rec.Timestamp.UTC().Format(fileTimeLayout), rec.ID, rec)
}

func (f FileStore) HealthHistory(_ context.Context, projectID string, limit int) ([]domain.HealthRecord, error) {
	if err := safeSegment(projectID); err != nil {
		return nil, err
	}
	paths, err := newest(filepath.Join(f.Dir, collectionHealth, projectID))
	if err != nil {
		return nil, domain.StoreError{Op: "health history", Err: err}
	}
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	res := make([]domain.HealthRecord, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, domain.StoreError{Op: "health history", Err: err}
		}
		rec, err := decodeHealth(data)
		if err != nil {
			return nil, domain.StoreError{Op: "health history", Err: err}
		}
		res = append(res, rec)
	}
	return res, nil
}

func (f FileStore) AppendInsights(_ context.Context, snap domain.InsightSnapshot) error {
	return f.write(filepath.Join(f.Dir, collectionInsights), snap.GeneratedAt.UTC().Format(fileTimeLayout), snap.ID, snap)
}

func (f FileStore) LatestInsights(_ context.Context) (domain.InsightSnapshot, error) {
	paths, err := newest(filepath.Join(f.Dir, collectionInsights))
	if err != nil {
		return domain.InsightSnapshot{}, domain.StoreError{Op: "latest insights", Err: err}
	}
	if len(paths) == 0 {
		return domain.InsightSnapshot{}, domain.NotFoundError{Kind: "insight snapshot"}
	}
	data, err := os.ReadFile(paths[0])
	if err != nil {
		return domain.InsightSnapshot{}, domain.StoreError{Op: "latest insights", Err: err}
	}
	snap, err := decodeInsights(data)
	if err != nil {
		return snap, domain.StoreError{Op: "latest insights", Err: err}
	}
	return snap, nil
}
