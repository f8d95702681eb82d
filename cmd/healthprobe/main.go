package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// healthprobe is a tiny liveness/readiness checker for a running chatcore
// gateway, suitable for container health checks where curl is unavailable.
func main() {
	target := flag.String("target", "http://127.0.0.1:8080", "base URL of the chatcore gateway")
	path := flag.String("path", "/readyz", "probe path (/healthz or /readyz)")
	timeout := flag.Duration("timeout", 2*time.Second, "probe timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(*target + *path)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := client.DoTimeout(req, resp, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "healthprobe: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "healthprobe: %s returned %d\n", *path, resp.StatusCode())
		os.Exit(1)
	}
	fmt.Printf("ok %s\n", string(resp.Body()))
}
