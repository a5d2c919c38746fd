// Command devtoken prints a bearer token for a user ID, signed with
// JWT_SECRET, for exercising the API locally.
package main

import (
	"flag"
	"fmt"
	"os"

	"fitmatch/backend/internal/config"
	"fitmatch/backend/pkg/jwt"
)

func main() {
	userID := flag.Uint("user", 1, "user ID to put in the token subject")
	flag.Parse()

	cfg := config.LoadConfig()
	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "user must be a positive integer")
		os.Exit(2)
	}

	token, err := jwt.GenerateToken(*userID, cfg.JWTSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
