// Package jwt authenticates notifykit API callers with HS256 tokens built on
// github.com/golang-jwt/jwt/v5. The token subject is the user id that owns
// the notifications a request may read or change.
//
//	svc, _ := jwt.New([]byte(secret), jwt.WithIssuer("notifyd"))
//	r.Use(jwt.Middleware(svc, nil))
//	userID, _ := jwt.SubjectFromContext(r.Context())
package jwt
