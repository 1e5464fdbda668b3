// Пакет auth - выпуск и проверка JWT (access/refresh) с подписью RS256.
// Публичный ключ хранится в jwkset и публикуется через JWKS,
// проверка подписи идёт через keyfunc поверх того же хранилища.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken - токен не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// TokenType - назначение токена.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims - claims выпускаемых токенов.
type Claims struct {
	jwt.RegisteredClaims
	// Username - имя пользователя на момент выпуска
	Username string `json:"username"`
	// TokenType - access или refresh
	TokenType TokenType `json:"token_type"`
}

// UserID возвращает идентификатор пользователя из sub.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: некорректный sub", ErrInvalidToken)
	}
	return id, nil
}

// TokenPair - пара токенов для ответа /api/token/.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Options - параметры выпуска токенов.
type Options struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// Issuer выпускает и проверяет токены.
type Issuer struct {
	key     *rsa.PrivateKey
	kid     string
	storage jwkset.Storage
	keyfunc keyfunc.Keyfunc
	opts    Options
	now     func() time.Time
}

// NewIssuer создаёт Issuer и регистрирует публичный ключ в JWK-хранилище.
func NewIssuer(ctx context.Context, key *rsa.PrivateKey, opts Options) (*Issuer, error) {
	if key == nil {
		return nil, errors.New("не задан ключ подписи")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("время жизни токенов должно быть положительным")
	}

	kid, err := keyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWK: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("запись JWK: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &Issuer{
		key:     key,
		kid:     kid,
		storage: storage,
		keyfunc: kf,
		opts:    opts,
		now:     time.Now,
	}, nil
}

// KeyID возвращает kid ключа подписи.
func (i *Issuer) KeyID() string {
	return i.kid
}

// IssuePair выпускает access и refresh токены для пользователя.
func (i *Issuer) IssuePair(userID int64, username string) (TokenPair, error) {
	access, err := i.sign(userID, username, TokenAccess, i.opts.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(userID, username, TokenRefresh, i.opts.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh проверяет refresh-токен и выпускает новый access-токен.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := i.Parse(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return "", err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", err
	}
	return i.sign(userID, claims.Username, TokenAccess, i.opts.AccessTTL)
}

// Parse проверяет подпись, срок действия, issuer и тип токена.
func (i *Issuer) Parse(ctx context.Context, tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.opts.Leeway),
		jwt.WithTimeFunc(i.now),
	}
	if i.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(i.opts.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, i.keyfunc.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: ожидался токен типа %s, получен %q", ErrInvalidToken, want, claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrInvalidToken)
	}
	return claims, nil
}

// JWKS возвращает JSON набора публичных ключей.
func (i *Issuer) JWKS(ctx context.Context) (json.RawMessage, error) {
	return i.storage.JSONPublic(ctx)
}

func (i *Issuer) sign(userID int64, username string, typ TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.opts.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username:  username,
		TokenType: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// keyID - первые 16 байт SHA-256 от DER публичного ключа в hex.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("сериализация публичного ключа: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:16]), nil
}

// LoadOrGenerateKey читает RSA-ключ из PEM (PKCS#1 или PKCS#8).
// При пустом пути генерирует временный ключ: токены перестанут
// проходить проверку после перезапуска.
func LoadOrGenerateKey(path string, logger *slog.Logger) (*rsa.PrivateKey, error) {
	if path == "" {
		logger.Warn("DV_JWT_PRIVATE_KEY_PATH не задан, сгенерирован временный ключ подписи")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("генерация RSA-ключа: %w", err)
		}
		return key, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение ключа %s: %w", path, err)
	}
	key, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("ключ %s: %w", path, err)
	}
	logger.Info("Ключ подписи JWT загружен", slog.String("path", path))
	return key, nil
}

// ParsePrivateKeyPEM разбирает RSA-ключ в формате PEM.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("PEM-блок не найден")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("ключ не является RSA")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("неподдерживаемый тип PEM-блока %q", block.Type)
	}
}
