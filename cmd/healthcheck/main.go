// Container healthcheck probe: exits 0 when /health answers 2xx.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Health check failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Println("Health check status:", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
