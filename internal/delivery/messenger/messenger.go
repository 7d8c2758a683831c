package messenger

import (
	"context"

	"gorm.io/datatypes"
)

// MessageSender delivers a rendered message to a provider-specific target.
// Implementations return an error on delivery failure; they never swallow it.
type MessageSender interface {
	SendWhatsApp(ctx context.Context, target, message string, opts datatypes.JSON) error
	SendSlack(ctx context.Context, target, message string, opts datatypes.JSON) error
}
