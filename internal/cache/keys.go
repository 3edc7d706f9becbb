package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("tubedrop:job:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("tubedrop:ratelimit:%s", client)
}

func SessionKey(token string) string {
	return fmt.Sprintf("tubedrop:session:%s", token)
}
