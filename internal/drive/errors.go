package drive

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	apperrors "github.com/drivegallery/drivegallery/internal/errors"
)

// rateLimitReasons are the googleapi error reasons Drive uses for quota
// exhaustion. They arrive with status 403, so status alone cannot separate
// them from genuine permission failures.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// classify maps a Drive API failure onto the application error taxonomy.
func classify(err error, op string) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return apperrors.Wrap(apperrors.KindUpstream, op+" failed", err)
	}

	switch apiErr.Code {
	case http.StatusNotFound:
		return apperrors.Wrap(apperrors.KindNotFound, "image not found", err)
	case http.StatusForbidden:
		if hasRateLimitReason(apiErr) {
			return apperrors.Wrap(apperrors.KindRateLimited, "rate limit exceeded", err)
		}
		return apperrors.Wrap(apperrors.KindPermissionDenied, "access denied", err)
	case http.StatusTooManyRequests:
		return apperrors.Wrap(apperrors.KindRateLimited, "rate limit exceeded", err)
	default:
		return apperrors.Wrap(apperrors.KindUpstream, op+" failed", err)
	}
}

func hasRateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
