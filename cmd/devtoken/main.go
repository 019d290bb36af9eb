// devtoken はローカル確認用のアクセストークンを発行する。
//
//	go run ./cmd/devtoken -sub 3f1c... -role ADMIN
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func main() {
	sub := flag.String("sub", "", "user id (default: random uuid)")
	role := flag.String("role", middleware.RoleUser, "USER or ADMIN")
	ttl := flag.Duration("ttl", 15*time.Minute, "token lifetime")
	flag.Parse()

	if *role != middleware.RoleUser && *role != middleware.RoleAdmin {
		fmt.Fprintf(os.Stderr, "invalid role: %s\n", *role)
		os.Exit(2)
	}
	if *sub == "" {
		*sub = uuid.NewString()
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = config.DevJWTSecret
	}

	now := time.Now()
	claims := middleware.AccessClaims{
		Role: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
