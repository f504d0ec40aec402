package common

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// RetryPolicyConfig represents configuration for gRPC retry policy
type RetryPolicyConfig struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []string
}

// DefaultRetryPolicy retries reads against an unavailable ledger node. Submissions
// are never retried by the transport: a rejected submission surfaces to the caller.
var DefaultRetryPolicy = RetryPolicyConfig{
	MaxAttempts:          3,
	InitialBackoff:       500 * time.Millisecond,
	MaxBackoff:           5 * time.Second,
	BackoffMultiplier:    2.0,
	RetryableStatusCodes: []string{"UNAVAILABLE"},
}

// CreateRetryPolicy generates a service config JSON string from a RetryPolicyConfig
func CreateRetryPolicy(config RetryPolicyConfig) string {
	return fmt.Sprintf(`{
		"methodConfig": [{
		  "name": [{"service": "kylan.ledger.v1.Ledger", "method": "GetAccount"}],
		  "retryPolicy": {
			  "MaxAttempts": %d,
			  "InitialBackoff": "%s",
			  "MaxBackoff": "%s",
			  "BackoffMultiplier": %.1f,
			  "RetryableStatusCodes": [ "%s" ]
		  }
		}]}`, config.MaxAttempts, serviceConfigDuration(config.InitialBackoff), serviceConfigDuration(config.MaxBackoff),
		config.BackoffMultiplier, strings.Join(config.RetryableStatusCodes, "\", \""))
}

// serviceConfigDuration renders d the way the gRPC service config expects it,
// in seconds with an "s" suffix.
func serviceConfigDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

// NewGRPCConnection creates a new gRPC connection to the given address. If certPath is nil
// or empty, the connection is made without TLS.
func NewGRPCConnection(address string, certPath *string, retryPolicy *RetryPolicyConfig) (*grpc.ClientConn, error) {
	if certPath == nil || len(*certPath) == 0 {
		return grpc.NewClient(address, baseDialOptions(retryPolicy, insecure.NewCredentials())...)
	}

	certPool := x509.NewCertPool()
	serverCert, err := os.ReadFile(*certPath)
	if err != nil {
		return nil, err
	}
	if !certPool.AppendCertsFromPEM(serverCert) {
		return nil, errors.New("failed to append certificate")
	}

	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	creds := credentials.NewTLS(&tls.Config{
		InsecureSkipVerify: host == "localhost",
		RootCAs:            certPool,
		ServerName:         host,
	})
	return grpc.NewClient(address, baseDialOptions(retryPolicy, creds)...)
}

func baseDialOptions(retryPolicy *RetryPolicyConfig, creds credentials.TransportCredentials) []grpc.DialOption {
	policy := DefaultRetryPolicy
	if retryPolicy != nil {
		policy = *retryPolicy
	}
	return []grpc.DialOption{
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultServiceConfig(CreateRetryPolicy(policy)),
		grpc.WithTransportCredentials(creds),
	}
}
