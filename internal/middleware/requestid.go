package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier on both the request and
	// the response.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key the identifier is stored under.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier that follows it
// through the structured logs. A context switch, the membership reload it
// triggers, and the activity entry it records all log the same id, which is
// what makes one user action traceable across those layers. An inbound
// X-Request-ID (set by a proxy in front of the API) is reused; otherwise a
// fresh UUID is minted. The id is echoed on the response so clients can quote
// it when reporting a failure.
//
// Mount before LoggerMiddleware, which reads RequestIDKey.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
