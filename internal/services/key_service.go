package services

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cachedKey pairs the PEM with the key version so callers always know
// which pair produced a signature.
type cachedKey struct {
	pem     []byte
	version int
}

type keyCache struct {
	cache map[uint]cachedKey
	mu    sync.RWMutex
}

func newKeyCache() *keyCache {
	return &keyCache{cache: make(map[uint]cachedKey)}
}

func (kc *keyCache) get(userID uint) (cachedKey, bool) {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	ck, exists := kc.cache[userID]
	return ck, exists
}

func (kc *keyCache) set(userID uint, ck cachedKey) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.cache[userID] = ck
}

func (kc *keyCache) invalidate(userID uint) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	delete(kc.cache, userID)
}

// KeyService owns user signing keys and the session token store.
type KeyService struct {
	db           *gorm.DB
	sessionStore *SessionStore
	logger       *zap.Logger
	metrics      *metrics.MetricsCollector
	keyCache     *keyCache
	sessionTTL   time.Duration
	stopChan     chan struct{}
}

type SessionStore struct {
	sessions map[string]SessionData
	mutex    sync.RWMutex
}

type SessionData struct {
	UserID    uint
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

func NewKeyService(db *gorm.DB, sessionTTL time.Duration, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *KeyService {
	ks := &KeyService{
		db: db,
		sessionStore: &SessionStore{
			sessions: make(map[string]SessionData),
		},
		logger:     logger.With(zap.String("service", "key_service")),
		metrics:    metricsCollector,
		keyCache:   newKeyCache(),
		sessionTTL: sessionTTL,
		stopChan:   make(chan struct{}),
	}

	go ks.startBackgroundCleanup(context.Background())

	return ks
}

func (ks *KeyService) Close() {
	close(ks.stopChan)
}

func (ks *KeyService) startBackgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ks.stopChan:
			return
		case <-ticker.C:
			ks.cleanupExpiredSessions()
		}
	}
}

func (ks *KeyService) cleanupExpiredSessions() {
	ks.sessionStore.mutex.Lock()
	defer ks.sessionStore.mutex.Unlock()

	now := time.Now()
	for token, session := range ks.sessionStore.sessions {
		if now.After(session.ExpiresAt) {
			delete(ks.sessionStore.sessions, token)
			ks.metrics.IncrementCounter("key_service.sessions_expired", nil)
		}
	}
}

func parsePrivateKey(pemData []byte, userID uint) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM data for user %d", userID)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA key for user %d: %w", userID, err)
	}

	return priv, nil
}

// LoadUserPrivateKey fetches the user's active signing key from the
// database, bypassing the cache. Returns the key together with its
// version number.
func (ks *KeyService) LoadUserPrivateKey(ctx context.Context, userID uint) (*rsa.PrivateKey, int, error) {
	var clave models.ClaveUsuario
	err := ks.db.WithContext(ctx).
		Where("usuario_id = ? AND estado = ?", userID, "activa").
		Order("version DESC").
		First(&clave).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, ErrKeyNotFound
		}
		return nil, 0, fmt.Errorf("failed to fetch signing key: %w", err)
	}

	ks.db.WithContext(ctx).Model(&clave).Update("last_access", time.Now())
	ks.keyCache.set(userID, cachedKey{pem: clave.ClavePEM, version: clave.Version})

	priv, err := parsePrivateKey(clave.ClavePEM, userID)
	if err != nil {
		return nil, 0, err
	}
	return priv, clave.Version, nil
}

// UsePrivateKey returns the user's active signing key and its version,
// serving from the cache when possible.
func (ks *KeyService) UsePrivateKey(userID uint) (*rsa.PrivateKey, int, error) {
	if ck, exists := ks.keyCache.get(userID); exists {
		priv, err := parsePrivateKey(ck.pem, userID)
		if err != nil {
			return nil, 0, err
		}
		return priv, ck.version, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ks.logger.Info("Loading user signing key from database", zap.Uint("user_id", userID))
	return ks.LoadUserPrivateKey(ctx, userID)
}

// PublicKeyFor derives the public half of the user's stored key pair,
// including revoked keys so old signatures remain verifiable.
func (ks *KeyService) PublicKeyFor(ctx context.Context, userID uint, version int) (*rsa.PublicKey, error) {
	var clave models.ClaveUsuario
	err := ks.db.WithContext(ctx).
		Where("usuario_id = ? AND version = ?", userID, version).
		First(&clave).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	priv, err := parsePrivateKey(clave.ClavePEM, userID)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

// RevokeKey marks the user's active key revoked and drops it from the
// cache. A fresh key must be provisioned before the user can sign again.
func (ks *KeyService) RevokeKey(ctx context.Context, userID uint) error {
	res := ks.db.WithContext(ctx).Model(&models.ClaveUsuario{}).
		Where("usuario_id = ? AND estado = ?", userID, "activa").
		Update("estado", "revocada")
	if res.Error != nil {
		return res.Error
	}
	ks.keyCache.invalidate(userID)
	ks.logger.Info("Signing key revoked", zap.Uint("user_id", userID))
	return nil
}

func (ks *KeyService) CreateSessionToken(ctx context.Context, userID uint, ipAddress, userAgent string) (string, error) {
	token := uuid.New().String()
	ks.sessionStore.mutex.Lock()
	ks.sessionStore.sessions[token] = SessionData{
		UserID:    userID,
		ExpiresAt: time.Now().Add(ks.sessionTTL),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	ks.sessionStore.mutex.Unlock()

	ks.logger.Info("Created new session",
		zap.Uint("user_id", userID),
		zap.String("token", token[:8]+"..."),
		zap.String("ip_address", ipAddress),
	)
	return token, nil
}

func (ks *KeyService) getSessionData(token string) (SessionData, error) {
	ks.sessionStore.mutex.RLock()
	sd, exists := ks.sessionStore.sessions[token]
	ks.sessionStore.mutex.RUnlock()
	if !exists || time.Now().After(sd.ExpiresAt) {
		return SessionData{}, ErrInvalidSession
	}
	return sd, nil
}

func (ks *KeyService) IsValidSession(token string) (uint, bool) {
	sd, err := ks.getSessionData(token)
	if err != nil {
		return 0, false
	}
	return sd.UserID, true
}

func (ks *KeyService) InvalidateSession(token string) {
	ks.sessionStore.mutex.Lock()
	delete(ks.sessionStore.sessions, token)
	ks.sessionStore.mutex.Unlock()
}
