// Package tenant implements the tenant config store (spec.md component F):
// one JSON document per TenantID, written with the write-temp-then-rename
// pattern and serialized per-tenant by an in-process read-write lock.
// Grounded on the teacher's easyweb3-platform/internal/notification.FileStore
// (Load/Save/Get/Put over a JSON-on-disk map), upgraded here to atomic
// per-file rename since the teacher's Save only does a direct os.WriteFile.
package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"marketwatch/internal/models"
)

// Validation errors named verbatim by spec.md §4.F.
var (
	ErrInvalidTenantID = errors.New("InvalidTenantID")
	ErrInvalidChannel  = errors.New("InvalidChannel")
	ErrInvalidRole     = errors.New("InvalidRole")
	ErrInvalidToken    = errors.New("InvalidToken")
	ErrInvalidWebhook  = errors.New("InvalidWebhook")
	ErrPathEscape      = errors.New("PathEscape")
	ErrNotFound        = errors.New("tenant: not found")
)

var (
	tenantIDPattern  = regexp.MustCompile(`^[0-9]{17,19}$`)
	identifierPattern = regexp.MustCompile(`^([0-9]{17,19}|[a-zA-Z0-9_-]{1,100})$`)
	tokenPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{50,70}$`)
)

// ValidateTenantID enforces the 17-19 digit numeric TenantID grammar.
func ValidateTenantID(id string) error {
	if !tenantIDPattern.MatchString(id) {
		return ErrInvalidTenantID
	}
	return nil
}

// ValidateChannelID enforces the channel-identifier grammar.
func ValidateChannelID(id string) error {
	if id == "" {
		return nil
	}
	if !identifierPattern.MatchString(id) {
		return ErrInvalidChannel
	}
	return nil
}

// ValidateRoleID enforces the role-identifier grammar (identical to channel).
func ValidateRoleID(id string) error {
	if id == "" {
		return nil
	}
	if !identifierPattern.MatchString(id) {
		return ErrInvalidRole
	}
	return nil
}

// ValidateToken enforces the base64-urlsafe-like, 50-70 char token grammar.
func ValidateToken(tok string) error {
	if tok == "" {
		return nil
	}
	if !tokenPattern.MatchString(tok) {
		return ErrInvalidToken
	}
	return nil
}

// ValidateWebhook checks that url's host matches one of the allowed chat
// platform hostnames.
func ValidateWebhook(rawURL string, allowedHosts []string) error {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidWebhook
	}
	host := u.Hostname()
	for _, h := range allowedHosts {
		if strings.EqualFold(host, h) {
			return nil
		}
	}
	return ErrInvalidWebhook
}

// newAdminToken generates a fresh admin token in the 50-70 char grammar
// enforced by ValidateToken: two UUIDv4s with dashes stripped, concatenated.
func newAdminToken() string {
	a := strings.ReplaceAll(uuid.New().String(), "-", "")
	b := strings.ReplaceAll(uuid.New().String(), "-", "")
	return a + b
}

// Store is a file-backed, per-tenant-locked TenantConfig repository.
type Store struct {
	root            string
	createIfMissing bool
	allowedWebhooks []string

	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex
}

func New(root string, createIfMissing bool, allowedWebhookHosts []string) *Store {
	return &Store{
		root:            root,
		createIfMissing: createIfMissing,
		allowedWebhooks: allowedWebhookHosts,
		locks:           make(map[string]*sync.RWMutex),
	}
}

func (s *Store) lockFor(tenantID string) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[tenantID] = l
	}
	return l
}

// pathFor resolves the on-disk path for a tenant and guards against path
// escape: the resolved, cleaned path must remain within the config root.
func (s *Store) pathFor(tenantID string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, tenantID+".json")
	cleaned := filepath.Clean(p)
	if !strings.HasPrefix(cleaned, root+string(filepath.Separator)) && cleaned != root {
		return "", ErrPathEscape
	}
	return cleaned, nil
}

// Get loads a tenant's config, creating a default (and persisting it) on
// first reference if s.createIfMissing.
func (s *Store) Get(tenantID string) (models.TenantConfig, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return models.TenantConfig{}, err
	}
	lock := s.lockFor(tenantID)
	lock.RLock()
	cfg, ok, err := s.readLocked(tenantID)
	lock.RUnlock()
	if err != nil {
		return models.TenantConfig{}, err
	}
	if ok {
		return cfg, nil
	}
	if !s.createIfMissing {
		return models.TenantConfig{}, ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	// Re-check under the write lock in case another writer created it.
	cfg, ok, err = s.readLocked(tenantID)
	if err != nil {
		return models.TenantConfig{}, err
	}
	if ok {
		return cfg, nil
	}
	def := models.DefaultTenantConfig(tenantID, newAdminToken())
	if err := s.writeLocked(tenantID, def); err != nil {
		return models.TenantConfig{}, err
	}
	return def, nil
}

func (s *Store) readLocked(tenantID string) (models.TenantConfig, bool, error) {
	path, err := s.pathFor(tenantID)
	if err != nil {
		return models.TenantConfig{}, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.TenantConfig{}, false, nil
		}
		return models.TenantConfig{}, false, err
	}
	var cfg models.TenantConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return models.TenantConfig{}, false, err
	}
	return cfg, true, nil
}

// Put validates and persists a tenant config, per §4.F's full validation
// list.
func (s *Store) Put(tenantID string, cfg models.TenantConfig) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	if err := validateConfig(cfg, s.allowedWebhooks); err != nil {
		return err
	}
	cfg.TenantID = tenantID
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(tenantID, cfg)
}

func validateConfig(cfg models.TenantConfig, allowedWebhookHosts []string) error {
	for kind, id := range cfg.Channels {
		found := false
		for _, k := range models.KnownChannelKinds() {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown channel kind %q", ErrInvalidChannel, kind)
		}
		if err := ValidateChannelID(id); err != nil {
			return err
		}
	}
	for kind, id := range cfg.Roles {
		found := false
		for _, k := range models.KnownRoleKinds() {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown role kind %q", ErrInvalidRole, kind)
		}
		if err := ValidateRoleID(id); err != nil {
			return err
		}
	}
	for name, setting := range cfg.TierRoles {
		if _, ok := models.TierByName(name); !ok {
			return fmt.Errorf("%w: unknown tier %q", ErrInvalidRole, name)
		}
		if err := ValidateRoleID(setting.RoleID); err != nil {
			return err
		}
	}
	if cfg.MinTierName != "" {
		if _, ok := models.TierByName(cfg.MinTierName); !ok {
			return fmt.Errorf("%w: unknown min_tier_name %q", ErrInvalidRole, cfg.MinTierName)
		}
	}
	if err := ValidateToken(cfg.AdminToken); err != nil {
		return err
	}
	if cfg.AlertThresholds.MinMarginGP < 0 {
		return fmt.Errorf("invalid alert_thresholds.min_margin_gp")
	}
	if cfg.AlertThresholds.MinScore < 0 || cfg.AlertThresholds.MinScore > 100 {
		return fmt.Errorf("invalid alert_thresholds.min_score")
	}
	if cfg.AlertThresholds.MaxAlertsPerInterval < 1 || cfg.AlertThresholds.MaxAlertsPerInterval > 10 {
		return fmt.Errorf("invalid alert_thresholds.max_alerts_per_interval")
	}
	for _, t := range cfg.AlertThresholds.EnabledTiers {
		if _, ok := models.TierByName(t); !ok {
			return fmt.Errorf("%w: unknown enabled_tier %q", ErrInvalidRole, t)
		}
	}
	pb := cfg.PriceBrackets
	if pb.CheapMax < 0 || pb.MediumMax < pb.CheapMax || pb.ExpensiveMax < pb.MediumMax {
		return fmt.Errorf("invalid price_brackets: must be non-decreasing positives")
	}
	if err := ValidateWebhook(cfg.WebhookURL, allowedWebhookHosts); err != nil {
		return err
	}
	return nil
}

func (s *Store) writeLocked(tenantID string, cfg models.TenantConfig) error {
	path, err := s.pathFor(tenantID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tenant-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// List returns every persisted tenant config, ordered by TenantID.
func (s *Store) List() ([]models.TenantConfig, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]models.TenantConfig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		tenantID := strings.TrimSuffix(e.Name(), ".json")
		cfg, ok, err := func() (models.TenantConfig, bool, error) {
			lock := s.lockFor(tenantID)
			lock.RLock()
			defer lock.RUnlock()
			return s.readLocked(tenantID)
		}()
		if err != nil || !ok {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// Ban sets banned=true on an existing (or lazily-created) tenant.
func (s *Store) Ban(tenantID string) error {
	return s.setBanned(tenantID, true)
}

// Unban clears banned.
func (s *Store) Unban(tenantID string) error {
	return s.setBanned(tenantID, false)
}

func (s *Store) setBanned(tenantID string, banned bool) error {
	cfg, err := s.Get(tenantID)
	if err != nil {
		return err
	}
	cfg.Banned = banned
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(tenantID, cfg)
}

// Delete removes a tenant's document entirely.
func (s *Store) Delete(tenantID string) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()
	path, err := s.pathFor(tenantID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
