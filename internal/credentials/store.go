// Package credentials хранит токен авторизации клиента.
//
// Долговременное хранилище (FileStore) играет роль cookie браузера и переживает
// перезапуск процесса, MemoryStore живёт в пределах одной сессии процесса.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store описывает хранилище токена.
type Store interface {
	Token() string
	Save(token string, expires time.Time) error
	Clear() error
}

// MemoryStore хранит токен в памяти процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Token возвращает сохранённый токен или пустую строку, если токена нет или он истёк.
func (m *MemoryStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if expired(m.expires, m.now()) {
		return ""
	}
	return m.token
}

// Save сохраняет токен. Нулевой expires означает бессрочное хранение.
func (m *MemoryStore) Save(token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.expires = expires
	return nil
}

// Clear удаляет токен.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.expires = time.Time{}
	return nil
}

type fileRecord struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires,omitempty"`
}

// FileStore хранит токен в файле с правами 0600.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore создаёт файловое хранилище по указанному пути.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Token читает токен из файла. Истёкший токен удаляется.
func (f *FileStore) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}

	if expired(rec.Expires, f.now()) {
		_ = os.Remove(f.path)
		return ""
	}
	return rec.Token
}

// Save атомарно записывает токен в файл.
func (f *FileStore) Save(token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(fileRecord{Token: token, Expires: expires})
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Clear удаляет файл с токеном.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func expired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}

// Chain объединяет долговременное и сессионное хранилища.
// Чтение идёт сначала из долговременного, затем из сессионного.
type Chain struct {
	durable Store
	session Store
	logger  *zap.Logger
}

// NewChain создаёт цепочку хранилищ. durable может быть nil.
func NewChain(durable, session Store, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		durable: durable,
		session: session,
		logger:  logger,
	}
}

// Token возвращает токен из первого хранилища, где он есть.
func (c *Chain) Token() string {
	if c.durable != nil {
		if token := c.durable.Token(); token != "" {
			return token
		}
	}
	return c.session.Token()
}

// SessionToken возвращает токен только из сессионного хранилища.
func (c *Chain) SessionToken() string {
	return c.session.Token()
}

// Save сохраняет токен в оба хранилища. Ошибка долговременного хранилища
// не мешает работе сессии и только логируется.
func (c *Chain) Save(token string, expires time.Time) error {
	if err := c.session.Save(token, expires); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}

	if c.durable != nil {
		if err := c.durable.Save(token, expires); err != nil {
			c.logger.Warn("durable token store unavailable, keeping session token only", zap.Error(err))
		}
	}
	return nil
}

// Clear очищает оба хранилища.
func (c *Chain) Clear() error {
	var errs []error
	if c.durable != nil {
		if err := c.durable.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.session.Clear(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
