package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/IsaacPaez/drivingschool-sub001/internal/cache"

	"go.uber.org/zap"
)

// VerifyService emite y valida códigos de un solo uso para verificar el
// contacto antes del checkout. Los códigos viven en un almacén con TTL
// inyectado; el envío del email es un colaborador externo.
type VerifyService struct {
	codes  *cache.TTLStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewVerifyService(codes *cache.TTLStore, ttl time.Duration, logger *zap.Logger) *VerifyService {
	return &VerifyService{codes: codes, ttl: ttl, logger: logger}
}

func (s *VerifyService) SendCode(email string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.codes.Set("verify:"+email, code, s.ttl)

	// El notificador de email está fuera de este núcleo; acá solo queda
	// registrado que el código se emitió.
	s.logger.Info("Código de verificación emitido", zap.String("email", email))
	return nil
}

// CheckCode valida y consume el código (un solo uso).
func (s *VerifyService) CheckCode(email, code string) error {
	stored, ok := s.codes.Get("verify:" + email)
	if !ok || stored != code {
		return ErrInvalidCode
	}
	s.codes.Delete("verify:" + email)
	return nil
}
