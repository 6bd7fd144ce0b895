package identity

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const serviceName = "IdentityService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the identity Service.
// Session keys are never logged.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Address() string {
	return ls.svc.Address()
}

// Register wraps the service method with logging
func (ls *logService) Register(ctx context.Context, address string) (resp *RegisteredIdentity, err error) {
	start := time.Now()

	ls.logger.Info("Register started",
		zap.String("service", serviceName),
		zap.String("method", "Register"),
		zap.String("address", address),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Register failed",
				zap.String("service", serviceName),
				zap.String("method", "Register"),
				zap.String("address", address),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("Register completed",
			zap.String("service", serviceName),
			zap.String("method", "Register"),
			zap.String("address", resp.Address),
			zap.String("user_id", resp.UserID),
			zap.String("contract", resp.Contract),
			zap.String("session_key", redactKey(resp.Key.PrivateKey)),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.Register(ctx, address)
}

// Current wraps the service method with logging
func (ls *logService) Current(address string) (*RegisteredIdentity, error) {
	resp, err := ls.svc.Current(address)
	if err != nil {
		ls.logger.Debug("No current identity",
			zap.String("service", serviceName),
			zap.String("address", address),
			zap.Error(err),
		)
	}
	return resp, err
}

func redactKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	return "<redacted>"
}
