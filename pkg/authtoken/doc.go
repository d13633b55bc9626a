// Package authtoken implements the credential tokens presented by clients
// when opening a persistent connection.
//
// Tokens are compact JWTs signed with HMAC-SHA256. The package deliberately
// supports a single algorithm: tokens carrying any other "alg" header are
// rejected to prevent algorithm confusion attacks. Signature verification
// uses constant-time comparison.
//
//	svc, _ := authtoken.NewFromString(cfg.SigningKey)
//	token, _ := svc.Generate(authtoken.Claims{
//		Subject:   userID,
//		ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
//	})
//
//	claims, err := svc.Parse(token)
//	// err is ErrExpiredToken / ErrInvalidToken / ErrInvalidSignature on failure
package authtoken
