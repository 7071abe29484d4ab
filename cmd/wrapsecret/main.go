package main

import (
	"fmt"
	"os"

	"github.com/easeemail/easeemail/pkg/crypto"
)

// Wraps an SMTP password with the platform secret key so it can be stored
// in smtp_configurations.password_wrapped.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: wrapsecret <password> <secret_key>")
		os.Exit(1)
	}

	password := os.Args[1]
	secretKey := os.Args[2]

	wrapped, err := crypto.EncryptString(password, secretKey)
	if err != nil {
		fmt.Printf("Failed to wrap secret: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Wrapped: %s\n", wrapped)
	fmt.Println()
	fmt.Printf("Verify:  %s\n", crypto.UnwrapSecret(wrapped, secretKey))
}
