package email

import (
	"context"
)

type Service interface {
	SendClinicApproved(ctx context.Context, to string, clinicName string) error
	SendClinicRejected(ctx context.Context, to string, clinicName string, reason string) error
	SendWelcome(ctx context.Context, to string, name string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}
