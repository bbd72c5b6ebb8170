package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, recipient string, sessionID string, errorMsg string) error
}
