// devtoken emite un access token para conectar un cliente al gateway
// durante desarrollo. El usuario referido debe existir en la base.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"groupwire/internal/domain"
	"groupwire/internal/service"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	email := flag.String("email", "", "user email")
	role := flag.String("role", "member", "user role")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	svc := service.NewJWTService(secret, *ttl)
	token, err := svc.GenerateAccessToken(domain.User{
		ID:    *userID,
		Email: *email,
		Role:  *role,
	})
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
