package main

import (
	"fmt"
	"io"
	"os"

	"github.com/easeemail/easeemail/pkg/crypto"
)

// Computes the X-Webhook-Signature value for a payload read from stdin,
// so subscribers can verify their signature checks against known input.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: signpayload <webhook_api_key> < payload.json")
		os.Exit(1)
	}

	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Printf("Failed to read payload: %v\n", err)
		os.Exit(1)
	}

	signature := crypto.ComputeHMAC256(payload, os.Args[1])

	fmt.Println()
	fmt.Printf("X-Webhook-Signature: %s\n", signature)
}
