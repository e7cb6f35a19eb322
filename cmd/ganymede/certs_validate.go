package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	securityTLS "mercator-hq/ganymede/pkg/security/tls"
)

var certsValidateFlags struct {
	certFile string
	keyFile  string
	caFile   string
}

var certsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate certificate and key",
	Long: `Validate a client certificate and private key.

This command validates:
  - Certificate and key pair match
  - Certificate is not expired
  - Certificate chain validation (if --ca provided)
  - Certificate expiration warnings (<30 days)

These are the same checks the server runs when it loads the client
identity at startup and on reload, so a pair that passes here will be
accepted by "ganymede run".

Examples:
  # Validate certificate and key match
  ganymede certs validate --cert certs/client.crt --key certs/client.key

  # Validate certificate chain against the upstream CA
  ganymede certs validate --cert certs/client.crt --ca certs/ca.crt

  # Validate both key and chain
  ganymede certs validate --cert certs/client.crt --key certs/client.key --ca certs/ca.crt`,
	RunE: validateCertificate,
}

func init() {
	certsCmd.AddCommand(certsValidateCmd)

	certsValidateCmd.Flags().StringVar(&certsValidateFlags.certFile, "cert", "", "certificate file (required)")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.keyFile, "key", "", "private key file")
	certsValidateCmd.Flags().StringVar(&certsValidateFlags.caFile, "ca", "", "CA certificate file")

	_ = certsValidateCmd.MarkFlagRequired("cert")
}

func validateCertificate(cmd *cobra.Command, args []string) error {
	status := cli.NewStatus(cmd.OutOrStdout())
	status.Infof("Validating certificate: %s", certsValidateFlags.certFile)
	status.Blank()

	certPEM, err := os.ReadFile(certsValidateFlags.certFile)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	cert, err := securityTLS.ParsePEMCertificate(certPEM)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	// Validate certificate and key match (if key provided)
	if certsValidateFlags.keyFile != "" {
		if _, err := tls.LoadX509KeyPair(certsValidateFlags.certFile, certsValidateFlags.keyFile); err != nil {
			status.Failf("Certificate and key do NOT match")
			return err
		}
		status.Successf("Certificate and key match")
	}

	// Validate chain (if CA provided)
	if certsValidateFlags.caFile != "" {
		if err := validateChain(cert, certsValidateFlags.caFile); err != nil {
			status.Failf("Certificate chain invalid")
			return err
		}
		status.Successf("Certificate chain valid")
	}

	// Check expiration
	now := time.Now()
	if now.After(cert.NotAfter) {
		status.Failf("Certificate EXPIRED on %s", cert.NotAfter.Format("2006-01-02"))
		return fmt.Errorf("certificate expired")
	}
	status.Successf("Certificate not expired (valid until %s)", cert.NotAfter.Format("2006-01-02"))

	// Warning if expires soon
	daysUntilExpiry, warning := securityTLS.CheckCertificateExpiration(cert)
	if warning != "" {
		status.Warnf("Certificate expires in %d days", daysUntilExpiry)
	}

	// Print certificate details
	status.Blank()
	status.Infof("Certificate Details:")
	status.Infof("  Subject: %s", cert.Subject.CommonName)
	if len(cert.Subject.Organization) > 0 {
		status.Infof("  Organization: %s", cert.Subject.Organization[0])
	}
	status.Infof("  Issuer: %s", cert.Issuer.CommonName)
	status.Infof("  Serial: %x", cert.SerialNumber)
	status.Infof("  Valid From: %s", cert.NotBefore.Format(time.RFC3339))
	status.Infof("  Valid Until: %s", cert.NotAfter.Format(time.RFC3339))

	if len(cert.DNSNames) > 0 {
		status.Infof("  SANs (DNS): %v", cert.DNSNames)
	}
	if len(cert.IPAddresses) > 0 {
		status.Infof("  SANs (IP): %v", cert.IPAddresses)
	}

	return nil
}

func validateChain(cert *x509.Certificate, caFile string) error {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	return securityTLS.ValidateCertificateChain(cert, caPool)
}
