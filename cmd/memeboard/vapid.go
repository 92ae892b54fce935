package main

import (
	"fmt"
	"io"

	"github.com/4xmen/memeboard/internal/push"
)

func runVAPID(out io.Writer) error {
	privateKey, publicKey, err := push.GenerateKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", privateKey)
	return nil
}
