package service

import "context"

type serviceContextKey struct{}

// WithService returns a context carrying svc.
func WithService(ctx context.Context, svc *NotificationService) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, serviceContextKey{}, svc)
}

func FromContext(ctx context.Context) (*NotificationService, bool) {
	if ctx == nil {
		return nil, false
	}
	svc, ok := ctx.Value(serviceContextKey{}).(*NotificationService)
	return svc, ok && svc != nil
}

// MustFromContext panics when ctx carries no service. Use it where a missing
// service is a wiring bug.
func MustFromContext(ctx context.Context) *NotificationService {
	svc, ok := FromContext(ctx)
	if !ok {
		panic("service: notification service missing from context")
	}
	return svc
}
