package lifecycle

import (
	"fmt"

	"github.com/google/uuid"
)

// idempotencyKey is stable per payment attempt, so a repeated processor call
// for the same attempt cannot open a second remote payment.
func idempotencyKey(paymentID string, attempt int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "payment:%s/attempt:%d", paymentID, attempt)).String()
}
