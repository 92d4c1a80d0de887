package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sbw-site/geotrack/internal/config"
	"github.com/sbw-site/geotrack/internal/pkg/jwt"
)

const (
	roleAdmin        = "admin"
	defaultFailDelay = 3 * time.Second
)

var (
	errLoginDisabled = errors.New("password login is disabled")
	errBadCredential = errors.New("wrong username or password")
)

// Service checks the configured operator credentials and issues admin tokens.
type Service struct {
	cfg       config.AdminConfig
	signer    *jwt.Signer
	failDelay time.Duration
	sleep     func(time.Duration)
}

func NewService(cfg config.AdminConfig, signer *jwt.Signer) *Service {
	return &Service{cfg: cfg, signer: signer, failDelay: defaultFailDelay, sleep: time.Sleep}
}

// Login returns a signed admin token when username and password match.
func (s *Service) Login(username, password string) (string, error) {
	if s.cfg.PasswordHash == "" {
		return "", errLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		s.sleep(s.failDelay)
		return "", errBadCredential
	}
	return s.signer.Sign(s.cfg.Username, roleAdmin, s.cfg.TokenTTL)
}

// HashPassword produces the value expected in admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
