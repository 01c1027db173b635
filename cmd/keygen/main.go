// Command keygen generates and inspects the Ed25519 identity keypairs that
// cmd/server and cmd/client sign and verify packets with.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fountainlink/transfer/internal/crypto"
	"github.com/fountainlink/transfer/internal/keyring"
	"golang.org/x/term"
)

const (
	identityKeyFile = "identity.key"
	identityPubFile = "identity.pub"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd(os.Args[2:])
	case "show":
		showCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("keygen - identity key management")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  keygen generate [flags]   generate a new identity keypair")
	fmt.Println("  keygen show [flags]       print a stored public key and its fingerprint")
}

func generateCmd(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	outputDir := fs.String("output-dir", keyring.DefaultKeystorePath(), "key storage directory")
	noPassphrase := fs.Bool("no-passphrase", false, "store the private key unencrypted (insecure)")
	force := fs.Bool("force", false, "overwrite an existing identity")
	fs.Parse(args)

	if err := os.MkdirAll(*outputDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}

	keyPath := filepath.Join(*outputDir, identityKeyFile)
	pubPath := filepath.Join(*outputDir, identityPubFile)
	if !*force {
		if _, err := os.Stat(keyPath); err == nil {
			fmt.Fprintf(os.Stderr, "identity already exists at %s; pass -force to overwrite\n", keyPath)
			os.Exit(1)
		}
	}

	kp, err := crypto.GenerateEd25519()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keypair: %v\n", err)
		os.Exit(1)
	}

	passphrase := ""
	if !*noPassphrase {
		passphrase = readPassphrase()
	}

	if err := keyring.SaveIdentityKey(kp.PrivateKey, keyPath, passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "save private key: %v\n", err)
		os.Exit(1)
	}
	pubHex := hex.EncodeToString(kp.PublicKey)
	if err := os.WriteFile(pubPath, []byte(pubHex+"\n"), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "save public key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("identity keypair generated")
	fmt.Printf("public key:  %s\n", pubHex)
	fmt.Printf("fingerprint: %s\n", crypto.ComputeFingerprint(kp.PublicKey))
	fmt.Printf("stored in:   %s\n", *outputDir)
	if passphrase == "" {
		fmt.Println("warning: private key stored without passphrase protection")
	}
}

func readPassphrase() string {
	fmt.Print("passphrase (empty for none): ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		os.Exit(1)
	}
	if len(first) == 0 {
		return ""
	}
	fmt.Print("confirm passphrase: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		os.Exit(1)
	}
	if string(first) != string(second) {
		fmt.Fprintln(os.Stderr, "passphrases do not match")
		os.Exit(1)
	}
	return string(first)
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	keysDir := fs.String("keys-dir", keyring.DefaultKeystorePath(), "key storage directory")
	fs.Parse(args)

	pubPath := filepath.Join(*keysDir, identityPubFile)
	data, err := os.ReadFile(pubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read public key: %v\n", err)
		fmt.Fprintln(os.Stderr, "run 'keygen generate' first")
		os.Exit(1)
	}

	pubHex := string(data)
	if n := len(pubHex); n > 0 && pubHex[n-1] == '\n' {
		pubHex = pubHex[:n-1]
	}
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode public key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("public key:  %s\n", pubHex)
	fmt.Printf("fingerprint: %s\n", crypto.ComputeFingerprint(pub))
}
