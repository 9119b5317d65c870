// Command tanlink-hashgen derives an admin credential and prints the
// environment lines tanlinkd expects. The plaintext password is never
// stored anywhere.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tanlink/tanlink/internal"
	"github.com/tanlink/tanlink/password"
)

func main() {
	iterations := flag.Int("iterations", 120_000, "PBKDF2 iteration count")
	saltLength := flag.Int("salt-bytes", 16, "salt length in bytes")
	keyLength := flag.Int("key-bytes", 32, "derived hash length in bytes")
	flag.Parse()

	if err := run(*iterations, *saltLength, *keyLength); err != nil {
		fmt.Fprintln(os.Stderr, "tanlink-hashgen:", err)
		os.Exit(1)
	}
}

func run(iterations, saltLength, keyLength int) error {
	reader := bufio.NewReader(os.Stdin)

	username, err := prompt(reader, "Admin username: ")
	if err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}

	plaintext, err := prompt(reader, "Admin password: ")
	if err != nil {
		return err
	}
	confirm, err := prompt(reader, "Confirm password: ")
	if err != nil {
		return err
	}
	if plaintext != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if plaintext == "" {
		return fmt.Errorf("password must not be empty")
	}

	salt, err := internal.RandomBytes(saltLength)
	if err != nil {
		return err
	}
	hash := password.Derive(plaintext, salt, iterations, keyLength)

	fmt.Printf("ADMIN_USERNAME=%s\n", username)
	fmt.Printf("ADMIN_PASSWORD_SALT=%s\n", hex.EncodeToString(salt))
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hex.EncodeToString(hash))
	fmt.Printf("ADMIN_PASSWORD_ITER=%d\n", iterations)

	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
