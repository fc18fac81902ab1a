package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	ErrOTPNotFound = errors.New("no code requested for this email")
	ErrOTPExpired  = errors.New("code expired")
	ErrOTPMismatch = errors.New("incorrect code")
)

type otpEntry struct {
	code      string
	expiresAt time.Time
}

// OTPMailer sends the one-time code; *Mailer implements it.
type OTPMailer interface {
	SendOTP(email, code string) error
}

// OTPService issues and verifies short-lived email verification codes.
// Codes live in process memory, which holds for a single-instance
// deployment; a multi-instance deployment would move this map into the
// database or a shared cache.
type OTPService struct {
	mu      sync.Mutex
	entries map[string]otpEntry
	mailer  OTPMailer
	ttl     time.Duration
	now     func() time.Time
}

func NewOTPService(mailer OTPMailer, ttl time.Duration) *OTPService {
	s := &OTPService{
		entries: make(map[string]otpEntry),
		mailer:  mailer,
		ttl:     ttl,
		now:     time.Now,
	}
	go s.janitor()
	return s
}

// Send generates a fresh 6-digit code for the email, replacing any
// outstanding one, and mails it.
func (s *OTPService) Send(email string) error {
	email = normalizeEmail(email)
	code, err := generateOTP()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[email] = otpEntry{code: code, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	if s.mailer == nil {
		return nil
	}
	return s.mailer.SendOTP(email, code)
}

// Verify consumes the outstanding code for the email. A code verifies at
// most once; success removes it.
func (s *OTPService) Verify(email, code string) error {
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok {
		return ErrOTPNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, email)
		return ErrOTPExpired
	}
	if entry.code != strings.TrimSpace(code) {
		return ErrOTPMismatch
	}
	delete(s.entries, email)
	return nil
}

func (s *OTPService) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := s.now()
		s.mu.Lock()
		for email, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, email)
			}
		}
		s.mu.Unlock()
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
