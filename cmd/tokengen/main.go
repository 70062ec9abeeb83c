// Command tokengen mints a bearer token for the chat gateway.
//
//	GATEWAY_JWT_SECRET=... go run ./cmd/tokengen -sub discord-gateway -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwtmw "crypto_quote_bot/internal/platform/jwt"
)

func main() {
	sub := flag.String("sub", "gateway", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("GATEWAY_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "GATEWAY_JWT_SECRET is not set")
		os.Exit(2)
	}

	token, err := jwtmw.NewGenerator(secret, *ttl).GenerateToken(*sub)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
