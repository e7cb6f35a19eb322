package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
)

var generateFlags struct {
	commonName string
	hosts      string
	org        string
	validity   int
	keySize    int
	ca         bool
	output     string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed client identity",
	Long: `Generate a self-signed certificate and private key for testing.

By default the certificate is a client identity: it carries the Client
Authentication extended key usage and can be handed straight to an
upstream that accepts self-signed client certificates. With --ca the
certificate is a certificate authority instead, usable for signing and
as a trust root (ca_file) on either side of the proxy.

Features:
  - RSA key generation (2048, 3072, or 4096 bits)
  - Optional Subject Alternative Names (DNS and IP)
  - Configurable validity period and organization
  - Secure file permissions (0600 for the private key)

⚠️  WARNING: Self-signed certificates are for TESTING ONLY!
   Do not use in production. For production, use certificates
   issued by the upstream operator's CA.

Examples:
  # Generate a client identity
  ganymede certs generate --cn dev-client

  # Generate a test CA
  ganymede certs generate --ca --cn "Dev Root CA" --output certs/ca

  # Generate an identity that also works as a server certificate
  ganymede certs generate --cn dev-client --host "localhost,127.0.0.1"

  # Custom parameters
  ganymede certs generate \
    --cn dev-client \
    --org "My Company" \
    --validity 365 \
    --key-size 2048 \
    --output certs/`,
	RunE: generateCertificate,
}

func init() {
	certsCmd.AddCommand(certsGenerateCmd)

	certsGenerateCmd.Flags().StringVar(&generateFlags.commonName, "cn", "ganymede-client", "certificate common name")
	certsGenerateCmd.Flags().StringVar(&generateFlags.hosts, "host", "", "comma-separated hostnames and IPs for SANs")
	certsGenerateCmd.Flags().StringVar(&generateFlags.org, "org", "Mercator", "organization name")
	certsGenerateCmd.Flags().IntVar(&generateFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&generateFlags.keySize, "key-size", 2048, "RSA key size (2048, 3072, 4096)")
	certsGenerateCmd.Flags().BoolVar(&generateFlags.ca, "ca", false, "generate a certificate authority instead of a client identity")
	certsGenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "certs", "output directory")
}

func generateCertificate(cmd *cobra.Command, args []string) error {
	status := cli.NewStatus(cmd.OutOrStdout())

	kind := "client identity"
	if generateFlags.ca {
		kind = "certificate authority"
	}
	status.Infof("Generating self-signed %s...", kind)

	// Validate key size
	if generateFlags.keySize != 2048 && generateFlags.keySize != 3072 && generateFlags.keySize != 4096 {
		return fmt.Errorf("invalid key size: %d (must be 2048, 3072, or 4096)", generateFlags.keySize)
	}

	// Parse hosts into SANs
	var dnsNames []string
	var ipAddresses []net.IP
	if generateFlags.hosts != "" {
		for _, host := range strings.Split(generateFlags.hosts, ",") {
			host = strings.TrimSpace(host)
			if host == "" {
				continue
			}
			if ip := net.ParseIP(host); ip != nil {
				ipAddresses = append(ipAddresses, ip)
			} else {
				dnsNames = append(dnsNames, host)
			}
		}
	}

	// Generate private key
	status.Infof("Generating %d-bit RSA private key...", generateFlags.keySize)
	privateKey, err := rsa.GenerateKey(rand.Reader, generateFlags.keySize)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(0, 0, generateFlags.validity)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{generateFlags.org},
			CommonName:   generateFlags.commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddresses,
	}

	if generateFlags.ca {
		template.IsCA = true
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	} else {
		template.KeyUsage = x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
		// An identity with SANs doubles as a server certificate for the
		// proxy's own inbound TLS.
		if len(dnsNames) > 0 || len(ipAddresses) > 0 {
			template.ExtKeyUsage = append(template.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
		}
	}

	status.Infof("Creating self-signed certificate...")
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	// Create output directory with restricted permissions (0750)
	if err := os.MkdirAll(generateFlags.output, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write certificate
	certPath := filepath.Join(generateFlags.output, "cert.pem")
	certFile, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("failed to create certificate file: %w", err)
	}
	defer certFile.Close()

	if err := pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: derBytes}); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	// Write private key with restricted permissions (0600)
	keyPath := filepath.Join(generateFlags.output, "key.pem")
	keyFile, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer keyFile.Close()

	privateKeyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	if err := pem.Encode(keyFile, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privateKeyBytes}); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	// Print summary
	status.Blank()
	status.Infof("Certificate Generation Summary:")
	status.Infof("================================")
	status.Infof("Common Name: %s", generateFlags.commonName)
	if len(dnsNames) > 0 {
		status.Infof("  DNS Names: %v", dnsNames)
	}
	if len(ipAddresses) > 0 {
		status.Infof("  IP Addresses: %v", ipAddresses)
	}
	status.Infof("Organization: %s", generateFlags.org)
	status.Infof("Type: %s", kind)
	status.Infof("Validity: %d days", generateFlags.validity)
	status.Infof("Key Size: %d bits", generateFlags.keySize)
	status.Infof("Not Before: %s", notBefore.Format("2006-01-02 15:04:05 MST"))
	status.Infof("Not After: %s", notAfter.Format("2006-01-02 15:04:05 MST"))
	status.Blank()

	status.Successf("Certificate generated: %s", certPath)
	status.Successf("Private key generated: %s", keyPath)
	status.Blank()

	status.Warnf("WARNING: Self-signed certificates are for TESTING ONLY")
	status.Infof("    Do not use in production!")
	status.Blank()

	if generateFlags.ca {
		status.Infof("To trust this CA for upstream verification, add to your config.yaml:")
		status.Infof("---")
		status.Infof("client_tls:")
		status.Infof("  ca_file: %q", certPath)
	} else {
		status.Infof("To use this identity, add to your config.yaml:")
		status.Infof("---")
		status.Infof("client_tls:")
		status.Infof("  cert_file: %q", certPath)
		status.Infof("  key_file: %q", keyPath)
	}

	return nil
}
