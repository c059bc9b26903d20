package devserver

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const bearerPrefix = "Bearer "

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

const claimsKey = "claims"

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// ok writes a success envelope around data
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// okWith writes a success envelope with extra top-level members
func okWith(c *gin.Context, data any, extra gin.H) {
	body := gin.H{"success": true, "data": data}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail writes an error envelope and aborts the chain
func fail(c *gin.Context, status int, message string, fieldErrors map[string][]string) {
	body := gin.H{"success": false, "message": message}
	if len(fieldErrors) > 0 {
		body["errors"] = fieldErrors
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes the JSON body into req and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "Malformed request body.", nil)
		return false
	}
	if err := s.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", nil)
			return false
		}
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe))
		}
		fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", fields)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "The " + fe.Field() + " field is required."
	case "email":
		return "The " + fe.Field() + " must be a valid email address."
	case "min":
		return "The " + fe.Field() + " must be at least " + fe.Param() + " characters."
	case "eqfield":
		return "The " + fe.Field() + " does not match."
	}
	return "The " + fe.Field() + " is invalid."
}

// tokenMiddleware requires a valid bearer token issued for one of roles
func (s *Server) tokenMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			s.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected request without token")
			fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		claims, err := s.issuer.Validate(token)
		if err != nil {
			s.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected invalid token")
			fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		permitted := false
		for _, role := range roles {
			if claims.Role == role {
				permitted = true
			}
		}
		if !permitted {
			// A token of the other role is unknown to this guard
			fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		id, err := claims.AccountID()
		if err != nil {
			fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}
		if claims.Role == roleAgent {
			_, err = s.store.Agent(id)
		} else {
			_, err = s.store.Account(id)
		}
		if err != nil {
			fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func currentClaims(c *gin.Context) *Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*Claims)
	return claims
}

func currentID(c *gin.Context) int64 {
	claims := currentClaims(c)
	if claims == nil {
		return 0
	}
	id, _ := claims.AccountID()
	return id
}

// recorder keeps a copy of what a handler writes
type recorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotencyMiddleware replays the stored response of a mutating request
// whose Idempotency-Key was already seen
func (s *Server) idempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		scoped := c.Request.Method + " " + c.Request.URL.Path + " " + key
		if status, body, found := s.store.Replay(scoped); found {
			s.logger.Debug().Str("path", c.Request.URL.Path).Msg("Replaying idempotent response")
			c.Header("Idempotent-Replayed", "true")
			c.Data(status, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); status < http.StatusInternalServerError {
			s.store.Remember(scoped, status, rec.body.Bytes())
		}
	}
}
