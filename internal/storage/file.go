package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "clipbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files (all under one path prefix):
//   - <prefix>.state.json   (per-chat state blobs, rewritten atomically)
//   - <prefix>.sent.log     (append-only sent links, one URL per line)
//   - <prefix>.follows.txt  (follow set, one name per line)
//   - <prefix>.token.txt    ("token|expiry" credential blob)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	statePath   string
	sentPath    string
	followsPath string
	tokenPath   string

	sentFile *os.File
	states   map[int64]json.RawMessage
	follows  map[string]struct{}
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:         log,
		statePath:   prefix + ".state.json",
		sentPath:    prefix + ".sent.log",
		followsPath: prefix + ".follows.txt",
		tokenPath:   prefix + ".token.txt",
		states:      map[int64]json.RawMessage{},
		follows:     map[string]struct{}{},
	}

	if err := s.loadStateFile(); err != nil {
		return nil, err
	}
	if err := s.loadFollowsFile(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(s.sentPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.sentFile = f

	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentFile != nil {
		err := s.sentFile.Close()
		s.sentFile = nil
		return err
	}
	return nil
}

// ---- subscriber state ----

func (s *fileStore) PutState(ctx context.Context, chatID int64, blob []byte) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(json.RawMessage, len(blob))
	copy(cp, blob)
	s.states[chatID] = cp
	return s.writeStateLocked()
}

func (s *fileStore) DeleteState(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[chatID]; !ok {
		return nil
	}
	delete(s.states, chatID)
	return s.writeStateLocked()
}

func (s *fileStore) LoadStates(ctx context.Context) (map[int64][]byte, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]byte, len(s.states))
	for id, blob := range s.states {
		cp := make([]byte, len(blob))
		copy(cp, blob)
		out[id] = cp
	}
	return out, nil
}

func (s *fileStore) loadStateFile() error {
	b, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		// A corrupt state file should not brick startup.
		s.log.Warn("state file unreadable; starting empty", logx.String("path", s.statePath), logx.Err(err))
		return nil
	}
	for k, v := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		s.states[id] = v
	}
	return nil
}

func (s *fileStore) writeStateLocked() error {
	m := make(map[string]json.RawMessage, len(s.states))
	for id, blob := range s.states {
		m[strconv.FormatInt(id, 10)] = blob
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return atomicWrite(s.statePath, b)
}

// ---- sent links ----

func (s *fileStore) AppendSent(ctx context.Context, url string) error {
	_ = ctx
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentFile == nil {
		return errors.New("sent log closed")
	}
	_, err := s.sentFile.WriteString(url + "\n")
	return err
}

func (s *fileStore) ReplaceSent(ctx context.Context, urls []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentFile != nil {
		_ = s.sentFile.Close()
		s.sentFile = nil
	}
	var b strings.Builder
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := atomicWrite(s.sentPath, []byte(b.String())); err != nil {
		return err
	}
	f, err := os.OpenFile(s.sentPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.sentFile = f
	return nil
}

func (s *fileStore) LoadSent(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return readLines(s.sentPath)
}

// ---- follows ----

func (s *fileStore) AddFollow(ctx context.Context, name string) error {
	_ = ctx
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.follows[name]; ok {
		return nil
	}
	s.follows[name] = struct{}{}
	return s.writeFollowsLocked()
}

func (s *fileStore) RemoveFollow(ctx context.Context, name string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.follows[name]; !ok {
		return nil
	}
	delete(s.follows, name)
	return s.writeFollowsLocked()
}

func (s *fileStore) LoadFollows(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.follows))
	for n := range s.follows {
		out = append(out, n)
	}
	return out, nil
}

func (s *fileStore) loadFollowsFile() error {
	lines, err := readLines(s.followsPath)
	if err != nil {
		return err
	}
	for _, l := range lines {
		s.follows[l] = struct{}{}
	}
	return nil
}

func (s *fileStore) writeFollowsLocked() error {
	var b strings.Builder
	for n := range s.follows {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return atomicWrite(s.followsPath, []byte(b.String()))
}

// ---- credential ----

func (s *fileStore) PutCredential(ctx context.Context, token string, expiresAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := token + "|" + expiresAt.Format(time.RFC3339Nano)
	return atomicWrite(s.tokenPath, []byte(blob))
}

func (s *fileStore) GetCredential(ctx context.Context) (string, time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, err
	}
	parts := strings.SplitN(strings.TrimSpace(string(b)), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", time.Time{}, false, nil
	}
	exp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return "", time.Time{}, false, nil
	}
	return parts[0], exp, true, nil
}

// ---- helpers ----

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
