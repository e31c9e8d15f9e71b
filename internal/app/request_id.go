package app

import (
	"context"

	"github.com/breachwatch/breachwatch/internal/apperrors"
)

// RequestIDMiddleware attaches a request ID to every request.
var RequestIDMiddleware = apperrors.RequestIDMiddleware

// GetRequestID returns the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return apperrors.GetRequestID(ctx)
}
